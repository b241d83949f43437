package llm

import (
	"regexp"
	"strings"
)

// ExtractJSON returns the first JSON object in a model answer, with the //
// comments and trailing commas models tend to add removed. Code fences and
// prose around the object are ignored. It returns "" when the answer holds
// no object.
func ExtractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}
	return cleanJSON(firstObject(content[start:]))
}

// codeFencePattern matches the opening and closing lines of a markdown code
// block, with or without a language tag.
var codeFencePattern = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z]*[ \t]*\r?$\n?")

// StripCodeFences removes markdown code fence lines (```jsx, ```tsx,
// ```javascript, bare ```) from a model answer and trims the result. Text
// outside the fences is kept.
func StripCodeFences(content string) string {
	return strings.TrimSpace(codeFencePattern.ReplaceAllString(content, ""))
}

// firstObject returns the object that opens at s[0], up to its matching
// brace. Braces inside strings and // comments do not count. An object that
// is never closed is returned whole so the decoder can report it.
func firstObject(s string) string {
	var sc jsonScanner
	depth := 0
	for i := 0; i < len(s); i++ {
		if sc.skip(s, &i) {
			continue
		}
		switch s[i] {
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return s
}

// cleanJSON drops // comments and the commas that directly precede a closing
// brace or bracket.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = stripLineComment(line)
	}
	return dropTrailingCommas(strings.Join(lines, "\n"))
}

func dropTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	var sc jsonScanner
	for i := 0; i < len(s); i++ {
		if sc.inString || s[i] == '"' {
			sc.step(s[i])
			b.WriteByte(s[i])
			continue
		}
		if s[i] == ',' {
			rest := strings.TrimLeft(s[i+1:], " \t\r\n")
			if rest != "" && (rest[0] == '}' || rest[0] == ']') {
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// stripLineComment removes a // comment from one line, leaving string values
// alone:
//
//	"path/to/file.js",          // a comment  → "path/to/file.js",
//	"url": "http://example.com" // comment    → "url": "http://example.com"
func stripLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}

	var sc jsonScanner
	for i := 0; i < len(line); i++ {
		if !sc.inString && strings.HasPrefix(line[i:], "//") {
			return strings.TrimRight(line[:i], " \t")
		}
		sc.step(line[i])
	}
	return line
}

// jsonScanner tracks whether a byte-by-byte walk is inside a string value.
type jsonScanner struct {
	inString bool
	escaped  bool
}

func (sc *jsonScanner) step(ch byte) {
	switch {
	case sc.escaped:
		sc.escaped = false
	case sc.inString && ch == '\\':
		sc.escaped = true
	case ch == '"':
		sc.inString = !sc.inString
	}
}

// skip advances past string contents and // comments. It reports whether
// s[*i] was consumed and must not be read as structure.
func (sc *jsonScanner) skip(s string, i *int) bool {
	if !sc.inString && strings.HasPrefix(s[*i:], "//") {
		if nl := strings.IndexByte(s[*i:], '\n'); nl >= 0 {
			*i += nl
		} else {
			*i = len(s)
		}
		return true
	}
	wasString := sc.inString
	sc.step(s[*i])
	return wasString || sc.inString
}
