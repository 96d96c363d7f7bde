package document

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	untitledTitle = "Untitled"
	preambleTitle = "Preamble"

	// maxTitleLineLen bounds the line that may be promoted to a heading title.
	maxTitleLineLen = 120
	maxTitleWords   = 12
)

var clauseNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:regassist:clause"))

// headingPattern recognizes one kind of top-level heading. Group 1 is the
// heading number and group 2, when present, is an inline title.
type headingPattern struct {
	kind string
	re   *regexp.Regexp
}

// headingPatterns are tried in order, most specific first.
var headingPatterns = []headingPattern{
	{kind: "Article", re: regexp.MustCompile(`(?i)^art(?:icle|\.)\s+(\d+[a-z]?(?:\(\d+\))?)\s*(?:[-–—:.]\s*(.*))?$`)},
	{kind: "Chapter", re: regexp.MustCompile(`(?i)^chapter\s+([ivxlcdm]+|\d+)\s*(?:[-–—:.]\s*(.*))?$`)},
	{kind: "Section", re: regexp.MustCompile(`(?i)^(?:section|§)\s*(\d+(?:\.\d+)*[a-z]?)\s*(?:[-–—:.]\s*(.*))?$`)},
	{kind: "", re: regexp.MustCompile(`^(\d+(?:\.\d+)+)\.?\s+(\p{Lu}[^.;:]*)$`)},
}

var (
	listItemPattern = regexp.MustCompile(`^(?:\(?[a-z0-9]{1,4}\)|\d+\.)\s`)
	modalPattern    = regexp.MustCompile(`(?i)\b(?:shall|must|should|may|will)\b`)
)

type heading struct {
	label string // "Article 5", or the whole line for numbered headers
	title string
	// complete headings already carry their title and never consume the next line.
	complete bool
}

// matchHeading reports whether line opens a new clause.
func matchHeading(line string) (heading, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || len(trimmed) > maxTitleLineLen {
		return heading{}, false
	}
	for _, p := range headingPatterns {
		m := p.re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		if p.kind == "" {
			return heading{label: trimmed, complete: true}, true
		}
		number := m[1]
		if p.kind == "Chapter" {
			number = strings.ToUpper(number)
		}
		return heading{label: p.kind + " " + number, title: strings.TrimSpace(m[2])}, true
	}
	return heading{}, false
}

// isTitleLine reports whether a line following a bare heading reads as its title
// rather than as body text.
func isTitleLine(line string) bool {
	if line == "" || len(line) > maxTitleLineLen {
		return false
	}
	if _, ok := matchHeading(line); ok {
		return false
	}
	if listItemPattern.MatchString(line) || modalPattern.MatchString(line) {
		return false
	}
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(first) || len(strings.Fields(line)) > maxTitleWords {
		return false
	}
	return !strings.ContainsAny(line[len(line)-1:], ".;:,")
}

// Segment groups normalized lines into clauses. Every heading starts a new
// clause whose content runs to the next heading; nested paragraph numbering
// stays inside the clause. Text before the first heading becomes a
// "Preamble" clause, and input without any heading becomes one "Untitled"
// clause.
//
// Clause ids are derived from (version, ordinal, title), so identical input
// always yields identical ids. Ordinals start at 1 and have no gaps.
func Segment(version string, lines []Line) ([]Clause, error) {
	if len(lines) == 0 {
		return nil, &SegmentationError{Version: version}
	}

	var (
		clauses []Clause
		current *Clause
		body    []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.Join(trimBlank(body), "\n")
		current.Ordinal = len(clauses) + 1
		current.ID = ClauseID(version, current.Ordinal, current.Title)
		clauses = append(clauses, *current)
		current, body = nil, nil
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		h, ok := matchHeading(line.Text)
		if !ok {
			if current == nil {
				if line.Text == "" {
					continue
				}
				current = &Clause{Version: version, Title: preambleTitle, Page: line.Page}
			}
			body = append(body, line.Text)
			continue
		}

		flush()
		title := h.label
		if h.title == "" && !h.complete {
			if j := nextNonBlank(lines, i+1); j >= 0 && isTitleLine(lines[j].Text) {
				h.title = strings.TrimSpace(lines[j].Text)
				i = j
			}
		}
		if h.title != "" {
			title = h.label + " - " + h.title
		}
		current = &Clause{Version: version, Title: title, Page: line.Page}
	}
	flush()

	if len(clauses) == 0 {
		// only blank lines
		return nil, &SegmentationError{Version: version}
	}
	if len(clauses) == 1 && clauses[0].Title == preambleTitle {
		clauses[0].Title = untitledTitle
		clauses[0].ID = ClauseID(version, 1, untitledTitle)
	}
	return clauses, nil
}

// ClauseID derives the stable clause id for a (version, ordinal, title) triple.
func ClauseID(version string, ordinal int, title string) string {
	name := version + "\x00" + strconv.Itoa(ordinal) + "\x00" + title
	return uuid.NewSHA1(clauseNamespace, []byte(name)).String()
}

func nextNonBlank(lines []Line, from int) int {
	for j := from; j < len(lines); j++ {
		if lines[j].Text != "" {
			return j
		}
	}
	return -1
}

func trimBlank(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
