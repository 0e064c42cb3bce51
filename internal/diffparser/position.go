package diffparser

// LinePosition is one entry in a FileDiff's diff-position index.
type LinePosition struct {
	DiffPosition int
	Content      string
	IsAddition   bool
}

// PositionIndex builds the new_line_number -> LinePosition mapping the
// hosting API's review-comment endpoint requires. diff_position is a 1-based
// counter incrementing over every line of the file's diff body -- the "@@"
// header line included -- so it matches the position contract the host API
// expects, not a line number within the new file.
//
// Deleted and binary files never get inline comments, so their index is
// always empty.
func PositionIndex(f FileDiff) map[int]LinePosition {
	index := make(map[int]LinePosition)
	if f.IsDeleted || f.IsBinary {
		return index
	}

	diffPosition := 0
	for _, hunk := range f.Hunks {
		diffPosition++ // the "@@ ... @@" header line itself counts.
		newLine := hunk.NewStart

		for _, line := range hunk.Lines {
			diffPosition++

			if line == "" {
				// An empty body line is a context line representing a blank
				// source line.
				index[newLine] = LinePosition{DiffPosition: diffPosition, Content: line, IsAddition: false}
				newLine++
				continue
			}

			switch line[0] {
			case '+':
				index[newLine] = LinePosition{DiffPosition: diffPosition, Content: line[1:], IsAddition: true}
				newLine++
			case '-':
				// Deletions advance diff_position only; they have no
				// new_line_number to key on.
			case ' ':
				index[newLine] = LinePosition{DiffPosition: diffPosition, Content: line[1:], IsAddition: false}
				newLine++
			}
		}
	}

	return index
}
