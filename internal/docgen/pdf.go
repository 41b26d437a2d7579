package docgen

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// StoryDocument carries everything the exporters need to lay out a case
// study: the narrative plus the extracted metadata sections.
type StoryDocument struct {
	Title            string
	LeadEntity       string
	PartnerEntity    string
	FinalSummary     string
	Quotes           []string
	CorrectedReplies []string
	Takeaways        []string
	GeneratedAt      time.Time
}

// RenderPDF produces the downloadable case-study PDF. The returned bytes
// always start with the %PDF signature for any non-empty summary.
func RenderPDF(doc StoryDocument) ([]byte, error) {
	if strings.TrimSpace(doc.FinalSummary) == "" {
		return nil, fmt.Errorf("empty final summary")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 20, 18)
	pdf.SetAutoPageBreak(true, 22)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.MultiCell(0, 9, tr(orDefault(doc.Title, "Case Study")), "", "L", false)

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(110, 110, 110)
	subtitle := fmt.Sprintf("%s × %s", orDefault(doc.LeadEntity, "Unknown"), orDefault(doc.PartnerEntity, "Unknown"))
	pdf.MultiCell(0, 6, tr(subtitle), "", "L", false)
	if !doc.GeneratedAt.IsZero() {
		pdf.MultiCell(0, 6, tr(doc.GeneratedAt.UTC().Format("January 2, 2006")), "", "L", false)
	}
	pdf.Ln(4)
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "", 11)
	for _, para := range strings.Split(doc.FinalSummary, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		pdf.MultiCell(0, 5.5, tr(para), "", "L", false)
		pdf.Ln(2.5)
	}

	writeSection := func(heading string, lines []string, quoted bool) {
		if len(lines) == 0 {
			return
		}
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 13)
		pdf.MultiCell(0, 7, tr(heading), "", "L", false)
		pdf.SetFont("Helvetica", "", 11)
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if quoted {
				line = "“" + line + "”"
			} else {
				line = "• " + line
			}
			pdf.MultiCell(0, 5.5, tr(line), "", "L", false)
			pdf.Ln(1)
		}
	}

	writeSection("Quotes Highlights", doc.Quotes, true)
	writeSection("Corrected & Conflicted Replies", doc.CorrectedReplies, false)
	writeSection("Key Takeaways", doc.Takeaways, false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	return buf.Bytes(), nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
