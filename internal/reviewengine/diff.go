package reviewengine

import (
	"fmt"

	"github.com/aireviewer/reviewerd/internal/diffparser"
)

// filterDiff parses a unified diff and drops any file the repository's
// path include/exclude configuration rejects, returning the retained files
// alongside each one's new_line_number -> diff-position index. The
// retained-file count and index feed the "files reviewed" accounting and
// inline-comment mapping only; the AIReviewer prompt is built from the
// unfiltered diff text so excluded files stay visible as change context
// even though the model may not comment on them directly.
func filterDiff(diffText string, include, exclude []string) ([]diffparser.FileDiff, map[string]map[int]diffparser.LinePosition, error) {
	pathFilter, err := diffparser.NewPathFilter(include, exclude)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling path filter: %w", err)
	}

	files := diffparser.Parse(diffText)

	var retained []diffparser.FileDiff
	index := make(map[string]map[int]diffparser.LinePosition)

	for _, f := range files {
		path := f.NewPath
		if f.IsDeleted {
			path = f.OldPath
		}
		if !pathFilter.Allows(path) {
			continue
		}
		retained = append(retained, f)
		index[f.NewPath] = diffparser.PositionIndex(f)
	}

	return retained, index, nil
}
