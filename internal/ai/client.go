package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/clientecho/backend/internal/textutil"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client is a thin wrapper over the LLM chat-completions endpoint. One POST
// per call, no retries; callers get best-effort results or defaults.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
	Limiter *rate.Limiter
	Logger  *log.Logger
}

// NewClientFromEnv reads OPENAI_API_KEY / OPENAI_BASE_URL / OPENAI_MODEL.
// Requests are limited to a conservative 2 rps so a burst of story
// generations cannot trip the provider quota.
func NewClientFromEnv() *Client {
	base := os.Getenv("OPENAI_BASE_URL")
	if base == "" {
		base = defaultBaseURL
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   model,
		HTTP:    &http.Client{Timeout: 90 * time.Second},
		Limiter: rate.NewLimiter(rate.Limit(2), 2),
		Logger:  log.Default(),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one chat completion request and returns the reply text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	msgs := []chatMessage{}
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: user})

	payload, err := json.Marshal(chatRequest{Model: c.Model, Messages: msgs, Temperature: 0.4})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("llm_non_2xx status=%d body=%s", res.StatusCode, textutil.Truncate(string(body), 600))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("llm_error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("llm_empty_response")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// ProjectInfo is the structured result of the project-extraction prompt.
type ProjectInfo struct {
	LeadEntity    string `json:"lead_entity"`
	PartnerEntity string `json:"partner_entity"`
	ProjectTitle  string `json:"project_title"`
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractProjectInfo asks the model for {lead_entity, partner_entity,
// project_title} from raw interview text. Any failure (HTTP, malformed
// JSON) degrades to "Unknown" placeholders rather than an error.
func (c *Client) ExtractProjectInfo(ctx context.Context, text string) ProjectInfo {
	fallback := ProjectInfo{LeadEntity: "Unknown", PartnerEntity: "Unknown", ProjectTitle: "Untitled Case Study"}

	prompt := "Extract the solution provider company (lead_entity), the client company (partner_entity) " +
		"and a short project title from the text below. Respond with only a JSON object with keys " +
		"lead_entity, partner_entity and project_title.\n\nText:\n" + textutil.Truncate(text, 6000)

	reply, err := c.Complete(ctx, "You extract structured facts from business interviews.", prompt)
	if err != nil {
		c.logf("[AI][ExtractProjectInfo] completion failed: %v", err)
		return fallback
	}

	// Models occasionally wrap the object in prose or a code fence; pull out
	// the first {...} blob before decoding.
	raw := jsonObjectRe.FindString(reply)
	if raw == "" {
		c.logf("[AI][ExtractProjectInfo] no JSON object in reply=%s", textutil.Truncate(reply, 300))
		return fallback
	}

	var info ProjectInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		c.logf("[AI][ExtractProjectInfo] decode failed: %v raw=%s", err, textutil.Truncate(raw, 300))
		return fallback
	}
	if strings.TrimSpace(info.LeadEntity) == "" {
		info.LeadEntity = "Unknown"
	}
	if strings.TrimSpace(info.PartnerEntity) == "" {
		info.PartnerEntity = "Unknown"
	}
	if strings.TrimSpace(info.ProjectTitle) == "" {
		info.ProjectTitle = "Untitled Case Study"
	}
	return info
}

// SummarizeInterview condenses one side's transcript into a summary in the
// requested language. Returns an error string result per the caller contract
// rather than propagating typed failures.
func (c *Client) SummarizeInterview(ctx context.Context, transcript, side, langCode string) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following %s interview into a concise narrative covering the problem, the solution and the outcome. "+
			"Write the summary in the language with ISO code %q. Keep concrete numbers and named people.\n\nTranscript:\n%s",
		side, langCode, textutil.Truncate(textutil.CleanTranscript(transcript), 24000))
	return c.Complete(ctx, "You are an assistant that writes business case studies.", prompt)
}

func (c *Client) logf(format string, args ...interface{}) {
	l := c.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}
