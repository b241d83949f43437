package session

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffOp classifies a line of a code diff.
type DiffOp string

const (
	DiffContext DiffOp = "context"
	DiffAdded   DiffOp = "added"
	DiffRemoved DiffOp = "removed"
)

// DiffLine is one line of a line-level diff between two code versions.
// OldLine and NewLine are 1-based and zero when the line is absent from
// that side.
type DiffLine struct {
	Op      DiffOp `json:"op"`
	Text    string `json:"text"`
	OldLine int    `json:"old_line,omitempty"`
	NewLine int    `json:"new_line,omitempty"`
}

// CodeDiff returns the line-level diff that turns before into after. A
// missing final newline is not treated as a change.
func CodeDiff(before, after string) []DiffLine {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(terminate(before), terminate(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var lines []DiffLine
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		for _, text := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				lines = append(lines, DiffLine{Op: DiffContext, Text: text, OldLine: oldLine, NewLine: newLine})
				oldLine++
				newLine++
			case diffmatchpatch.DiffDelete:
				lines = append(lines, DiffLine{Op: DiffRemoved, Text: text, OldLine: oldLine})
				oldLine++
			case diffmatchpatch.DiffInsert:
				lines = append(lines, DiffLine{Op: DiffAdded, Text: text, NewLine: newLine})
				newLine++
			}
		}
	}
	return lines
}

func terminate(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// DiffEntries diffs the code of two history entries by index. Indices are
// 0-based and must be within the log.
func (h *History) DiffEntries(from, to int) ([]DiffLine, error) {
	for _, i := range []int{from, to} {
		if i < 0 || i >= len(h.entries) {
			return nil, fmt.Errorf("history entry %d out of range (have %d)", i+1, len(h.entries))
		}
	}
	return CodeDiff(h.entries[from].Code, h.entries[to].Code), nil
}

// HasChanges reports whether a diff contains any added or removed line.
func HasChanges(lines []DiffLine) bool {
	for _, l := range lines {
		if l.Op != DiffContext {
			return true
		}
	}
	return false
}
