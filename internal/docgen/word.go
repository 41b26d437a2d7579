package docgen

import (
	"bytes"
	"fmt"
	"strings"

	docx "github.com/fumiama/go-docx"
)

// RenderWord produces the downloadable .docx variant of a case study.
func RenderWord(doc StoryDocument) ([]byte, error) {
	if strings.TrimSpace(doc.FinalSummary) == "" {
		return nil, fmt.Errorf("empty final summary")
	}

	w := docx.New().WithDefaultTheme()

	title := w.AddParagraph()
	title.AddText(orDefault(doc.Title, "Case Study")).Size("40")

	subtitle := w.AddParagraph()
	subtitle.AddText(fmt.Sprintf("%s x %s", orDefault(doc.LeadEntity, "Unknown"), orDefault(doc.PartnerEntity, "Unknown"))).
		Size("22").Color("6e6e6e")
	if !doc.GeneratedAt.IsZero() {
		w.AddParagraph().AddText(doc.GeneratedAt.UTC().Format("January 2, 2006")).Size("20").Color("6e6e6e")
	}
	w.AddParagraph()

	for _, para := range strings.Split(doc.FinalSummary, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		w.AddParagraph().AddText(para).Size("22")
	}

	writeSection := func(heading string, lines []string, quoted bool) {
		if len(lines) == 0 {
			return
		}
		w.AddParagraph()
		w.AddParagraph().AddText(heading).Size("28")
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if quoted {
				line = "\"" + line + "\""
			} else {
				line = "- " + line
			}
			w.AddParagraph().AddText(line).Size("22")
		}
	}

	writeSection("Quotes Highlights", doc.Quotes, true)
	writeSection("Corrected & Conflicted Replies", doc.CorrectedReplies, false)
	writeSection("Key Takeaways", doc.Takeaways, false)

	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("docx output: %w", err)
	}
	return buf.Bytes(), nil
}
