package logging

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// RedactTranscript masks emails, card numbers and phone numbers in spoken
// text before it reaches the logs.
func RedactTranscript(text string) string {
	out := emailPattern.ReplaceAllString(text, "[email]")
	// Cards first so a long digit run is not taken for a phone number.
	out = cardPattern.ReplaceAllString(out, "[card]")
	return phonePattern.ReplaceAllString(out, "[phone]")
}

// RedactURL hides the password of a connection URL.
func RedactURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "memory://"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable url]"
	}
	return u.Redacted()
}
