package moderation

import (
	"regexp"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Chat is text-only. Anything that smells like a file reference is rejected
// before it reaches storage.
var filePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\.(png|jpe?g|gif|bmp|webp|svg|ico|tiff?)\b`),
	regexp.MustCompile(`(?i)\.(mp4|avi|mov|wmv|mkv|flv|webm)\b`),
	regexp.MustCompile(`(?i)\.(mp3|wav|ogg|flac|aac|m4a)\b`),
	regexp.MustCompile(`(?i)\.(pdf|docx?|xlsx?|pptx?|txt|csv|zip|rar|7z|tar|gz)\b`),
	regexp.MustCompile(`(?i)data:[a-z]+/[a-z0-9.+-]+`),
	regexp.MustCompile(`(?i)blob:`),
	regexp.MustCompile(`(?i)(imgur\.com|ibb\.co|postimg\.cc|imgbb\.com|gyazo\.com|prnt\.sc|tinypic\.com)`),
}

var defaultProfanity = []string{
	"anjing", "bangsat", "kontol", "memek", "goblok", "tolol",
	"fuck", "shit", "bitch", "asshole", "bastard", "cunt",
}

var sanitizer = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Filter screens message content against the file-pattern and profanity
// policies and produces the sanitized storage form.
type Filter struct {
	matcher *goahocorasick.Machine
}

// NewFilter builds the profanity automaton from the built-in list plus any
// extra configured terms. Matching is a case-insensitive substring search.
func NewFilter(extraWords []string) (*Filter, error) {
	words := append(append([]string{}, defaultProfanity...), extraWords...)

	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		patterns = append(patterns, []rune(strings.ToLower(word)))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}

	return &Filter{matcher: m}, nil
}

// ContainsBlockedFile reports whether content references a file extension,
// data/blob URI or known image-hosting domain.
func (f *Filter) ContainsBlockedFile(content string) bool {
	for _, pattern := range filePatterns {
		if pattern.MatchString(content) {
			return true
		}
	}
	return false
}

// ContainsProfanity reports whether any configured term occurs in content,
// ignoring case.
func (f *Filter) ContainsProfanity(content string) bool {
	lowered := []rune(strings.ToLower(content))
	return len(f.matcher.MultiPatternSearch(lowered, true)) > 0
}

// Sanitize HTML-escapes the characters that matter for stored chat text.
// The stored content is always the sanitized form, never the raw input.
func (f *Filter) Sanitize(content string) string {
	return sanitizer.Replace(strings.TrimFunc(content, unicode.IsSpace))
}

// IsBlank reports whether content is empty or whitespace-only.
func IsBlank(content string) bool {
	return strings.TrimFunc(content, unicode.IsSpace) == ""
}
