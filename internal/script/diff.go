package script

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffKind marks a line in a state diff.
type DiffKind int

const (
	DiffContext DiffKind = iota
	DiffAdded
	DiffRemoved
)

// DiffLine is one line of a rendered state diff.
type DiffLine struct {
	Kind DiffKind
	Text string
}

// lineDiff compares two rendered states line by line. Identical input
// yields no lines.
func lineDiff(before, after string) []DiffLine {
	if before == after {
		return nil
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out []DiffLine
	for _, d := range diffs {
		kind := DiffContext
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			kind = DiffAdded
		case diffmatchpatch.DiffDelete:
			kind = DiffRemoved
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			out = append(out, DiffLine{Kind: kind, Text: line})
		}
	}
	return out
}
