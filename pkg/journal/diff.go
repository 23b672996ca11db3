package journal

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is how many unchanged lines are shown around each change
const contextLines = 3

// DiffResult is a line diff between two plans
type DiffResult struct {
	Text       string
	HasChanges bool
	Added      int
	Removed    int
}

// ComparePlans returns a line diff from oldText to newText. Removed lines are
// prefixed with "- ", added lines with "+ " and context lines with two spaces.
func ComparePlans(oldText, newText string) *DiffResult {
	oldText = normalizeLineEndings(oldText)
	newText = normalizeLineEndings(newText)
	if oldText == newText {
		return &DiffResult{}
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	result := &DiffResult{HasChanges: true}
	var out strings.Builder
	for _, d := range diffs {
		chunk := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			for _, line := range chunk {
				out.WriteString("- " + line + "\n")
				result.Removed++
			}
		case diffmatchpatch.DiffInsert:
			for _, line := range chunk {
				out.WriteString("+ " + line + "\n")
				result.Added++
			}
		case diffmatchpatch.DiffEqual:
			if len(chunk) > contextLines*2 {
				for _, line := range chunk[:contextLines] {
					out.WriteString("  " + line + "\n")
				}
				out.WriteString("  ...\n")
				for _, line := range chunk[len(chunk)-contextLines:] {
					out.WriteString("  " + line + "\n")
				}
			} else {
				for _, line := range chunk {
					out.WriteString("  " + line + "\n")
				}
			}
		}
	}
	result.Text = out.String()
	return result
}

// normalizeLineEndings converts all line endings to \n for consistent comparison
func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
