package controlfile

import (
	"fmt"
	"strings"
	"time"
)

const patternLetters = "GCYxwweEyDMdaKhHkmsSzZ"

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type patternToken struct {
	letter  rune
	count   int
	literal string
}

// ValidatePattern checks a date-time pattern in the Joda style (yyyy-MM-dd HH:mm:ss, quoted literals
// with single quotes). The ISO8601 sentinel is always valid.
func ValidatePattern(pattern string) error {
	_, err := tokenize(pattern)
	return err
}

// Layout translates a pattern into a Go time layout. ok is false when the pattern is invalid or uses
// fields Go layouts cannot express (week years, era, 0-based hours).
func Layout(pattern string) (layout string, ok bool) {
	tokens, err := tokenize(pattern)
	if err != nil {
		return "", false
	}
	var sb strings.Builder
	for _, t := range tokens {
		if t.letter == 0 {
			if !safeLiteral(t.literal) {
				return "", false
			}
			sb.WriteString(t.literal)
			continue
		}
		s, ok := layoutFor(t, sb.String())
		if !ok {
			return "", false
		}
		sb.WriteString(s)
	}
	return sb.String(), true
}

// ParseTimestamp tries each pattern in order and returns the first successful parse.
func ParseTimestamp(value string, patterns []string, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, p := range patterns {
		if strings.EqualFold(p, ISO8601) {
			for _, l := range isoLayouts {
				if t, err := time.ParseInLocation(l, value, loc); err == nil {
					return t, true
				}
			}
			continue
		}
		layout, ok := Layout(p)
		if !ok {
			continue
		}
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func tokenize(pattern string) ([]patternToken, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty date-time pattern")
	}
	if strings.EqualFold(pattern, ISO8601) {
		return nil, nil
	}
	runes := []rune(pattern)
	var tokens []patternToken
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '\'':
			var sb strings.Builder
			j := i + 1
			closed := false
			for j < len(runes) {
				if runes[j] == '\'' {
					if j+1 < len(runes) && runes[j+1] == '\'' {
						sb.WriteRune('\'')
						j += 2
						continue
					}
					closed = true
					break
				}
				sb.WriteRune(runes[j])
				j++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quote in pattern %q", pattern)
			}
			lit := sb.String()
			if j == i+1 {
				lit = "'"
			}
			tokens = append(tokens, patternToken{literal: lit})
			i = j + 1
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			if !strings.ContainsRune(patternLetters, r) {
				return nil, fmt.Errorf("illegal pattern component %q in %q", string(r), pattern)
			}
			j := i
			for j < len(runes) && runes[j] == r {
				j++
			}
			tokens = append(tokens, patternToken{letter: r, count: j - i})
			i = j
		default:
			tokens = append(tokens, patternToken{literal: string(r)})
			i++
		}
	}
	return tokens, nil
}

func layoutFor(t patternToken, prefix string) (string, bool) {
	switch t.letter {
	case 'y', 'Y':
		if t.count == 2 {
			return "06", true
		}
		return "2006", true
	case 'M':
		switch t.count {
		case 1:
			return "1", true
		case 2:
			return "01", true
		case 3:
			return "Jan", true
		default:
			return "January", true
		}
	case 'd':
		if t.count == 1 {
			return "2", true
		}
		return "02", true
	case 'D':
		if t.count == 3 {
			return "002", true
		}
	case 'H':
		return "15", true
	case 'h':
		if t.count == 1 {
			return "3", true
		}
		return "03", true
	case 'm':
		if t.count == 1 {
			return "4", true
		}
		return "04", true
	case 's':
		if t.count == 1 {
			return "5", true
		}
		return "05", true
	case 'S':
		if strings.HasSuffix(prefix, ".") || strings.HasSuffix(prefix, ",") {
			return strings.Repeat("0", t.count), true
		}
	case 'a':
		return "PM", true
	case 'E':
		if t.count <= 3 {
			return "Mon", true
		}
		return "Monday", true
	case 'z':
		return "MST", true
	case 'Z':
		switch t.count {
		case 1:
			return "-0700", true
		case 2:
			return "-07:00", true
		}
	}
	return "", false
}

func safeLiteral(s string) bool {
	if strings.ContainsAny(s, "0123456789_") {
		return false
	}
	for _, word := range []string{"Jan", "Mon", "MST", "PM", "pm"} {
		if strings.Contains(s, word) {
			return false
		}
	}
	return true
}
