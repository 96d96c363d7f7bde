package checklist

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

var listMarker = regexp.MustCompile(`^(?:\(?[a-z0-9]{1,4}\)|\d+\.|[-•*])\s+`)

// unit is a run of text that ends at a blank line or before a list item.
type unit struct {
	text     string
	listItem bool
}

func units(content string) []unit {
	var out []unit
	var cur []string
	curList := false
	flush := func() {
		if len(cur) > 0 {
			out = append(out, unit{text: strings.Join(cur, " "), listItem: curList})
		}
		cur, curList = nil, false
	}
	for line := range strings.SplitSeq(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case listMarker.MatchString(line):
			flush()
			cur = []string{listMarker.ReplaceAllString(line, "")}
			curList = true
		default:
			cur = append(cur, line)
		}
	}
	flush()
	return out
}

// sentences splits text after '.', ';' or ':' when the next word starts a
// new sentence. Abbreviations such as "Art. 5" stay intact because a digit
// follows.
func sentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != ';' && c != ':' {
			continue
		}
		j := i + 1
		if j < len(text) && text[j] != ' ' {
			continue
		}
		for j < len(text) && text[j] == ' ' {
			j++
		}
		if j < len(text) {
			r, _ := utf8.DecodeRuneInString(text[j:])
			if !unicode.IsUpper(r) && r != '(' {
				continue
			}
		}
		if s := strings.TrimSpace(text[start : i+1]); s != "" {
			out = append(out, s)
		}
		start = j
		i = j - 1
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// termPattern compiles ruleset terms into one case-insensitive word matcher.
// Longer terms are tried first so "may not" wins over "may".
func termPattern(terms []string) *regexp.Regexp {
	if len(terms) == 0 {
		return nil
	}
	sorted := slices.Clone(terms)
	slices.SortStableFunc(sorted, func(a, b string) int { return len(b) - len(a) })
	alts := make([]string, 0, len(sorted))
	for _, t := range sorted {
		t = strings.TrimSpace(t)
		prefix := strings.HasSuffix(t, "*")
		words := strings.Fields(strings.TrimSuffix(t, "*"))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alt := strings.Join(words, `\s+`)
		if prefix {
			alt += `\w*`
		}
		alts = append(alts, alt)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
}

var negation = regexp.MustCompile(`(?i)^not\s+`)

// imperative turns the words after a modal into task wording:
// "not disclose it." becomes "do not disclose it".
func imperative(rest string) string {
	rest = strings.TrimSpace(rest)
	if m := negation.FindString(rest); m != "" {
		rest = "do not " + rest[len(m):]
	}
	return clean(rest)
}

// clean trims list punctuation and dangling conjunctions.
func clean(s string) string {
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.TrimRight(s, " .;:,")
		trimmed = strings.TrimSuffix(trimmed, " and")
		trimmed = strings.TrimSuffix(trimmed, " or")
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
