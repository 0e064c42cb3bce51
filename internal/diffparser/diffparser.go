// Package diffparser parses unified diff text into a structured model and
// builds the line-to-diff-position index the hosting API's review comment
// endpoint requires.
package diffparser

import (
	"strconv"
	"strings"
)

// FileDiff is one file's entry in a unified diff.
type FileDiff struct {
	OldPath    string
	NewPath    string
	Hunks      []Hunk
	IsNew      bool
	IsDeleted  bool
	IsRenamed  bool
	IsBinary   bool
}

// Hunk is one `@@ ... @@` block within a FileDiff.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Header   string
	Lines    []string
}

const diffGitPrefix = "diff --git a/"

// Parse parses a unified diff buffer into an ordered list of FileDiff
// records, one per `diff --git` section.
func Parse(diff string) []FileDiff {
	var files []FileDiff
	var current *FileDiff
	var hunk *Hunk

	flushHunk := func() {
		if current != nil && hunk != nil {
			current.Hunks = append(current.Hunks, *hunk)
			hunk = nil
		}
	}
	flushFile := func() {
		flushHunk()
		if current != nil {
			files = append(files, *current)
			current = nil
		}
	}

	lines := strings.Split(diff, "\n")
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, diffGitPrefix):
			flushFile()
			old, newp := parseDiffGitLine(line)
			current = &FileDiff{OldPath: old, NewPath: newp}

		case current == nil:
			// Preamble before the first "diff --git" line; ignore.
			continue

		case strings.HasPrefix(line, "new file mode"):
			current.IsNew = true

		case strings.HasPrefix(line, "deleted file mode"):
			current.IsDeleted = true

		case strings.HasPrefix(line, "rename from"), strings.HasPrefix(line, "rename to"):
			current.IsRenamed = true

		case strings.HasPrefix(line, "Binary files "):
			current.IsBinary = true
			flushHunk()

		case strings.HasPrefix(line, "@@"):
			flushHunk()
			h := parseHunkHeader(line)
			hunk = &h

		case hunk != nil && isHunkBodyLine(line):
			hunk.Lines = append(hunk.Lines, line)

		default:
			// Any other line (---/+++ file markers, index lines, or a line
			// that doesn't belong to a hunk body) terminates the current hunk.
			flushHunk()
		}
	}
	flushFile()

	return files
}

func isHunkBodyLine(line string) bool {
	if line == "" {
		return true
	}
	switch line[0] {
	case '+', '-', ' ':
		return true
	default:
		return false
	}
}

// parseDiffGitLine extracts the a/ and b/ paths from a "diff --git a/X b/Y"
// line. Paths containing spaces make this ambiguous in the general case;
// the --- and +++ lines (if present) are not relied upon since renames and
// binary diffs may omit them.
func parseDiffGitLine(line string) (oldPath, newPath string) {
	rest := strings.TrimPrefix(line, diffGitPrefix)
	idx := strings.Index(rest, " b/")
	if idx < 0 {
		return rest, rest
	}
	return rest[:idx], rest[idx+len(" b/"):]
}

// parseHunkHeader parses "@@ -A,B +C,D @@ optional header" lines. Missing
// counts (e.g. "@@ -1 +1,2 @@") default to 1.
func parseHunkHeader(line string) Hunk {
	h := Hunk{OldCount: 1, NewCount: 1, Header: line}

	body := strings.TrimPrefix(line, "@@")
	end := strings.Index(body, "@@")
	var ranges string
	if end >= 0 {
		ranges = body[:end]
		h.Header = strings.TrimSpace(body[end+2:])
	} else {
		ranges = body
		h.Header = ""
	}

	fields := strings.Fields(ranges)
	for _, f := range fields {
		switch {
		case strings.HasPrefix(f, "-"):
			h.OldStart, h.OldCount = parseRange(f[1:])
		case strings.HasPrefix(f, "+"):
			h.NewStart, h.NewCount = parseRange(f[1:])
		}
	}
	return h
}

func parseRange(s string) (start, count int) {
	parts := strings.SplitN(s, ",", 2)
	start, _ = strconv.Atoi(parts[0])
	if len(parts) == 2 {
		count, _ = strconv.Atoi(parts[1])
	} else {
		count = 1
	}
	return start, count
}
