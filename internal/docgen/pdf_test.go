package docgen

import (
	"testing"
	"time"
)

func testDoc() StoryDocument {
	return StoryDocument{
		Title:         "Billing Migration",
		LeadEntity:    "Acme",
		PartnerEntity: "Client Co",
		FinalSummary:  "Acme helped Client Co migrate their billing stack.\n\nThe project finished ahead of schedule.",
		Quotes:        []string{"Best decision we made this year."},
		CorrectedReplies: []string{
			"Onboarding took three weeks, not one.",
		},
		Takeaways:   []string{"Early discovery prevented scope creep."},
		GeneratedAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

// The exported bytes must always carry the PDF signature.
func TestRenderPDF_StartsWithSignature(t *testing.T) {
	data, err := RenderPDF(testDoc())
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if len(data) < 5 || string(data[:5]) != "%PDF-" {
		t.Fatalf("expected %%PDF- signature, got %q", data[:min(8, len(data))])
	}
}

func TestRenderPDF_EmptySummaryRejected(t *testing.T) {
	doc := testDoc()
	doc.FinalSummary = "   "
	if _, err := RenderPDF(doc); err == nil {
		t.Fatalf("expected error for empty summary")
	}
}

func TestRenderPDF_MissingMetadataSections(t *testing.T) {
	doc := testDoc()
	doc.Quotes, doc.CorrectedReplies, doc.Takeaways = nil, nil, nil
	data, err := RenderPDF(doc)
	if err != nil {
		t.Fatalf("RenderPDF without metadata: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty PDF")
	}
}

func TestRenderWord_ZipContainer(t *testing.T) {
	data, err := RenderWord(testDoc())
	if err != nil {
		t.Fatalf("RenderWord: %v", err)
	}
	// .docx is a zip archive: PK\x03\x04.
	if len(data) < 4 || string(data[:2]) != "PK" {
		t.Fatalf("expected zip container, got %q", data[:min(4, len(data))])
	}
}

func TestRenderWord_EmptySummaryRejected(t *testing.T) {
	doc := testDoc()
	doc.FinalSummary = ""
	if _, err := RenderWord(doc); err == nil {
		t.Fatalf("expected error for empty summary")
	}
}

func TestOrDefault(t *testing.T) {
	if got := orDefault("", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback got %q", got)
	}
	if got := orDefault("  ", "fallback"); got != "fallback" {
		t.Fatalf("whitespace should fall back, got %q", got)
	}
	if got := orDefault("value", "fallback"); got != "value" {
		t.Fatalf("expected value got %q", got)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
