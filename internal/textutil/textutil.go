package textutil

import (
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
)

var (
	fillerRe     = regexp.MustCompile(`(?i)\b(um+|uh+|erm+|hmm+|you know,?|i mean,?)\b`)
	whitespaceRe = regexp.MustCompile(`[ \t]+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
	timestampRe  = regexp.MustCompile(`\[?\d{1,2}:\d{2}(:\d{2})?\]?`)
)

// iso639_3to1 covers the languages the interview UI offers. Detection falls
// back to English for anything outside this set.
var iso639_3to1 = map[string]string{
	"eng": "en",
	"deu": "de",
	"fra": "fr",
	"spa": "es",
	"ita": "it",
	"nld": "nl",
	"por": "pt",
	"pol": "pl",
	"swe": "sv",
	"dan": "da",
	"tur": "tr",
}

// DetectLanguage returns a best-effort ISO 639-1 code for the given text.
func DetectLanguage(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "en"
	}
	info := whatlanggo.Detect(text)
	if code, ok := iso639_3to1[whatlanggo.LangToString(info.Lang)]; ok {
		return code
	}
	return "en"
}

// CleanTranscript strips filler words, inline timestamps and excess
// whitespace from a raw interview transcript.
func CleanTranscript(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = timestampRe.ReplaceAllString(text, "")
	text = fillerRe.ReplaceAllString(text, "")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(whitespaceRe.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Truncate shortens s to at most n bytes, appending an ellipsis marker when
// anything was cut. Used when embedding text into log lines and prompts.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
