package release

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

// The GitHub release payloads are only read for a handful of fields, so they
// are scanned directly instead of being decoded into a document model. All
// scanning is string-aware: brackets, braces and key names that appear inside
// string values (release notes routinely contain them) are never matched.

// ParseDescriptor reads a single release object.
func ParseDescriptor(doc string) *Descriptor {
	d := &Descriptor{}
	d.Tag, _ = ExtractScalar(doc, "tag_name")
	d.Name, _ = ExtractScalar(doc, "name")
	d.Body, _ = ExtractScalar(doc, "body")
	d.HTMLURL, _ = ExtractScalar(doc, "html_url")
	d.ZipballURL, _ = ExtractScalar(doc, "zipball_url")
	d.Assets = ExtractAssets(doc)
	return d
}

// ParseFirstDescriptor reads the first release of a release list. A document
// that is not a list is parsed as a single release; an empty list yields an
// empty descriptor.
func ParseFirstDescriptor(doc string) *Descriptor {
	start := skipSpace(doc, 0)
	if start >= len(doc) || doc[start] != '[' {
		return ParseDescriptor(doc)
	}

	open := skipSpace(doc, start+1)
	if open >= len(doc) || doc[open] != '{' {
		return &Descriptor{Assets: []Asset{}}
	}

	end := matchDelimiter(doc, open, '{', '}')
	if end < 0 {
		return &Descriptor{Assets: []Asset{}}
	}
	return ParseDescriptor(doc[open : end+1])
}

// ExtractScalar returns the unescaped string value of the first field named
// field whose value is a string.
func ExtractScalar(doc, field string) (string, bool) {
	var (
		value string
		found bool
	)
	scanKeys(doc, field, func(at int) bool {
		if doc[at] != '"' {
			return true
		}
		end := closingQuote(doc, at)
		if end < 0 {
			return false
		}
		value, found = unescape(doc[at+1:end]), true
		return false
	})
	return value, found
}

// ExtractAssets returns the name and download URL of every element of the
// first "assets" list. A missing or malformed list yields an empty slice.
func ExtractAssets(doc string) []Asset {
	assets := []Asset{}

	span := ""
	scanKeys(doc, "assets", func(at int) bool {
		if doc[at] != '[' {
			return true
		}
		if end := matchDelimiter(doc, at, '[', ']'); end >= 0 {
			span = doc[at+1 : end]
		}
		return false
	})
	if span == "" {
		return assets
	}

	for i := 0; i < len(span); i++ {
		switch span[i] {
		case '"':
			end := closingQuote(span, i)
			if end < 0 {
				return assets
			}
			i = end
		case '{':
			end := matchDelimiter(span, i, '{', '}')
			if end < 0 {
				return assets
			}
			element := span[i : end+1]
			name, okName := ExtractScalar(element, "name")
			url, okURL := ExtractScalar(element, "browser_download_url")
			if okName && okURL {
				assets = append(assets, Asset{Name: name, URL: url})
			}
			i = end
		}
	}
	return assets
}

// scanKeys calls fn with the index of the value of every occurrence of the
// key field, in document order, until fn returns false.
func scanKeys(doc, field string, fn func(valueAt int) bool) {
	key := strconv.Quote(field)
	for i := 0; i < len(doc); i++ {
		if doc[i] != '"' {
			continue
		}
		end := closingQuote(doc, i)
		if end < 0 {
			return
		}
		if doc[i:end+1] == key {
			colon := skipSpace(doc, end+1)
			if colon < len(doc) && doc[colon] == ':' {
				at := skipSpace(doc, colon+1)
				if at < len(doc) && !fn(at) {
					return
				}
			}
		}
		i = end
	}
}

// closingQuote returns the index of the quote terminating the string that
// opens at open, or -1.
func closingQuote(s string, open int) int {
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// matchDelimiter returns the index of the delimiter closing the one at open.
// Delimiters inside strings are ignored and an escaped quote does not end a
// string.
func matchDelimiter(s string, open int, openCh, closeCh byte) int {
	depth := 0
	inString := false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case openCh:
			depth++
		case closeCh:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// unescape decodes JSON string escapes. A \u sequence that is not four hex
// digits, or a lone surrogate, becomes '?'.
func unescape(s string) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch n := s[i]; n {
		case '"', '\\', '/':
			b.WriteByte(n)
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'u':
			r, width := decodeUnicodeEscape(s, i-1)
			b.WriteRune(r)
			i += width - 2
		default:
			b.WriteByte(n)
		}
	}
	return b.String()
}

// decodeUnicodeEscape decodes the \uXXXX sequence starting at the backslash
// at, joining a following low surrogate when present. It returns the rune and
// the number of bytes consumed.
func decodeUnicodeEscape(s string, at int) (rune, int) {
	r, ok := hex4(s, at+2)
	if !ok {
		consumed := len(s) - at
		if consumed > 6 {
			consumed = 6
		}
		return '?', consumed
	}
	if !utf16.IsSurrogate(r) {
		return r, 6
	}
	if at+12 <= len(s) && s[at+6] == '\\' && s[at+7] == 'u' {
		if low, ok := hex4(s, at+8); ok {
			if joined := utf16.DecodeRune(r, low); joined != unicode.ReplacementChar {
				return joined, 12
			}
		}
	}
	return '?', 6
}

func hex4(s string, at int) (rune, bool) {
	if at+4 > len(s) {
		return 0, false
	}
	v, err := strconv.ParseUint(s[at:at+4], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}
