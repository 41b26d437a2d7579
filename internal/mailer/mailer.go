package mailer

import (
	"fmt"
	"log"
	"os"
	"strconv"

	gomail "github.com/wneessen/go-mail"
)

// Mailer sends transactional mail (client interview invites, company
// invites). When SMTP is not configured sends become logged no-ops so local
// development works without a relay.
type Mailer struct {
	host string
	port int
	user string
	pass string
	from string
}

func NewFromEnv() *Mailer {
	port := 587
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			port = n
		}
	}
	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "no-reply@clientecho.app"
	}
	return &Mailer{
		host: os.Getenv("SMTP_HOST"),
		port: port,
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASSWORD"),
		from: from,
	}
}

func (m *Mailer) Enabled() bool { return m != nil && m.host != "" }

// Send delivers one plain-text message.
func (m *Mailer) Send(to, subject, body string) error {
	if !m.Enabled() {
		log.Printf("[Mailer] SMTP not configured, skipping send to=%s subject=%q", to, subject)
		return nil
	}

	msg := gomail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	client, err := gomail.NewClient(m.host,
		gomail.WithPort(m.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.user),
		gomail.WithPassword(m.pass),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Printf("[Mailer] sent to=%s subject=%q", to, subject)
	return nil
}

// SendClientInvite mails the single-use interview link to the client.
func (m *Mailer) SendClientInvite(to, providerName, link string) error {
	subject := fmt.Sprintf("%s invited you to share your project experience", providerName)
	body := fmt.Sprintf(
		"Hello,\n\n%s is putting together a case study about your joint project and would love your side of the story.\n\n"+
			"Open your interview link (valid for 7 days, single use):\n%s\n\nThanks!\n", providerName, link)
	return m.Send(to, subject, body)
}

// SendCompanyInvite mails a teammate invitation.
func (m *Mailer) SendCompanyInvite(to, companyName, link string) error {
	subject := fmt.Sprintf("You have been invited to join %s", companyName)
	body := fmt.Sprintf("Hello,\n\nYou have been invited to join %s.\n\nAccept the invite:\n%s\n", companyName, link)
	return m.Send(to, subject, body)
}
