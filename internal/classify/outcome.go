package classify

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/cleared-dev/journalrag/internal/model"
)

// Outcome is the validated result of an oracle answer: either Matched or
// Unmatched. Callers switch on the concrete type.
type Outcome interface {
	outcome()
}

// Matched is an answer that resolved to exactly one candidate.
type Matched struct {
	Code  string
	Entry model.COAEntry
}

// Unmatched is an answer that did not resolve to a candidate.
type Unmatched struct {
	Raw string
}

func (Matched) outcome()   {}
func (Unmatched) outcome() {}

var labelPattern = regexp.MustCompile(`(?i)^(account\s+)?code\s*[:=]\s*`)

const quoteChars = "\"'`“”‘’"

// ParseAnswer maps free-form oracle text onto the candidate set. It tries an
// exact match on the cleaned answer, then a case-insensitive match, then a
// single candidate code appearing as a whole token in the raw text.
func ParseAnswer(raw string, candidates []model.COAEntry) Outcome {
	cleaned := clean(raw)
	for _, c := range candidates {
		if c.Code == cleaned {
			return Matched{Code: c.Code, Entry: c}
		}
	}
	for _, c := range candidates {
		if strings.EqualFold(c.Code, cleaned) {
			return Matched{Code: c.Code, Entry: c}
		}
	}

	var found []model.COAEntry
	seen := map[string]bool{}
	for _, c := range candidates {
		if seen[c.Code] || !containsToken(raw, c.Code) {
			continue
		}
		seen[c.Code] = true
		found = append(found, c)
	}
	if len(found) == 1 {
		return Matched{Code: found[0].Code, Entry: found[0]}
	}
	return Unmatched{Raw: raw}
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, quoteChars)
	s = labelPattern.ReplaceAllString(s, "")
	s = strings.TrimRight(s, ".,;:!")
	s = strings.Trim(strings.TrimSpace(s), quoteChars)
	return strings.TrimSpace(s)
}

// containsToken reports whether code occurs in s delimited by characters
// that cannot be part of a code.
func containsToken(s, code string) bool {
	if code == "" {
		return false
	}
	for start := 0; ; {
		i := strings.Index(s[start:], code)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(code)
		if (i == 0 || !codeRune(lastRune(s[:i]))) && (end == len(s) || !codeRune(firstRune(s[end:]))) {
			return true
		}
		start = i + 1
	}
}

func codeRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_'
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func lastRune(s string) rune {
	r := []rune(s)
	return r[len(r)-1]
}
