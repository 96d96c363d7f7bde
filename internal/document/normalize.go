package document

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/unicode/norm"
)

const (
	byteOrderMark = '\uFEFF'
	formFeed      = '\f'
)

// Normalize decodes content with the declared encoding and returns its lines:
// line endings unified, trailing whitespace trimmed, runs of blank lines
// collapsed to one and leading or trailing blank lines dropped. Text is put
// in Unicode NFC form so equal wording hashes equally.
//
// An empty declared encoding means UTF-8. Labels follow the WHATWG registry
// ("utf-8", "windows-1252", "iso-8859-1", "utf-16le", ...).
func Normalize(content []byte, declared string) ([]Line, error) {
	text, err := decode(content, declared)
	if err != nil {
		return nil, err
	}
	text = strings.TrimPrefix(text, string(byteOrderMark))
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = norm.NFC.String(text)

	var (
		lines []Line
		page  = 1
		blank = false
	)
	for raw := range strings.SplitSeq(text, "\n") {
		for {
			before, after, found := strings.Cut(raw, string(formFeed))
			lines, blank = appendLine(lines, before, page, blank)
			if !found {
				break
			}
			page++
			raw = after
		}
	}
	for len(lines) > 0 && lines[len(lines)-1].Text == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// appendLine adds one physical line, collapsing blank runs and skipping leading blanks.
func appendLine(lines []Line, raw string, page int, prevBlank bool) ([]Line, bool) {
	text := strings.TrimRightFunc(strings.ReplaceAll(raw, "\u00a0", " "), unicode.IsSpace)
	if text == "" {
		if prevBlank || len(lines) == 0 {
			return lines, prevBlank
		}
		return append(lines, Line{Page: page}), true
	}
	return append(lines, Line{Text: text, Page: page}), false
}

func decode(content []byte, declared string) (string, error) {
	label := strings.ToLower(strings.TrimSpace(declared))
	if label == "" || label == "utf-8" || label == "utf8" {
		if !utf8.Valid(content) {
			return "", &EncodingError{Encoding: "utf-8", Offset: firstInvalidUTF8(content)}
		}
		return string(content), nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", &EncodingError{Encoding: declared, Offset: -1, Err: err}
	}
	if enc == encoding.Replacement {
		return "", &EncodingError{Encoding: declared, Offset: -1, Err: fmt.Errorf("encoding %q is not decodable", declared)}
	}
	// Decoders substitute U+FFFD for undecodable input; a replacement
	// character in the output means the bytes do not fit the declared encoding.
	decoded, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", &EncodingError{Encoding: declared, Offset: -1, Err: err}
	}
	if i := bytes.IndexRune(decoded, utf8.RuneError); i >= 0 {
		return "", &EncodingError{Encoding: declared, Offset: -1, Err: fmt.Errorf("undecodable sequence near character %d", utf8.RuneCount(decoded[:i]))}
	}
	return string(decoded), nil
}

func firstInvalidUTF8(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
