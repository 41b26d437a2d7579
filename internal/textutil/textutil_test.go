package textutil

import (
	"strings"
	"testing"
)

func TestCleanTranscript_StripsFillersAndTimestamps(t *testing.T) {
	in := "[00:12] Um, so we started the project, you know, in March.\n\n\n\nUh, it went well."
	got := CleanTranscript(in)

	if strings.Contains(got, "Um") || strings.Contains(got, "Uh") || strings.Contains(got, "you know") {
		t.Fatalf("fillers not stripped: %q", got)
	}
	if strings.Contains(got, "00:12") {
		t.Fatalf("timestamp not stripped: %q", got)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("blank lines not collapsed: %q", got)
	}
}

func TestCleanTranscript_KeepsContent(t *testing.T) {
	got := CleanTranscript("We migrated 4 services in 12:30 minutes total.")
	if !strings.Contains(got, "We migrated 4 services") {
		t.Fatalf("content lost: %q", got)
	}
}

func TestDetectLanguage_German(t *testing.T) {
	got := DetectLanguage("Die Zusammenarbeit mit dem Team war hervorragend und das Projekt wurde pünktlich abgeschlossen. Wir sind sehr zufrieden mit dem Ergebnis.")
	if got != "de" {
		t.Fatalf("expected de got %q", got)
	}
}

func TestDetectLanguage_EmptyFallsBackToEnglish(t *testing.T) {
	if got := DetectLanguage("   "); got != "en" {
		t.Fatalf("expected en got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("short string should be untouched, got %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Fatalf("expected truncation marker, got %q", got)
	}
	if got := Truncate("hello", 0); got != "hello" {
		t.Fatalf("n<=0 should be a no-op, got %q", got)
	}
}
