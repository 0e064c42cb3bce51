package diffparser

import "testing"

const sampleDiff = `diff --git a/main.go b/main.go
index abc123..def456 100644
--- a/main.go
+++ b/main.go
@@ -1,4 +1,5 @@
 package main

-func main() {}
+func main() {
+	println("hi")
+}
diff --git a/new.go b/new.go
new file mode 100644
index 0000000..abc123
--- /dev/null
+++ b/new.go
@@ -0,0 +1,2 @@
+package main
+
diff --git a/old.go b/old.go
deleted file mode 100644
index abc123..0000000
--- a/old.go
+++ /dev/null
@@ -1,2 +0,0 @@
-package main
-
`

func TestParseBasic(t *testing.T) {
	files := Parse(sampleDiff)
	if len(files) != 3 {
		t.Fatalf("got %d files, want 3", len(files))
	}

	main := files[0]
	if main.NewPath != "main.go" || main.OldPath != "main.go" {
		t.Errorf("main.go paths = %q/%q", main.OldPath, main.NewPath)
	}
	if main.IsNew || main.IsDeleted {
		t.Error("main.go should not be flagged new or deleted")
	}
	if len(main.Hunks) != 1 {
		t.Fatalf("got %d hunks for main.go, want 1", len(main.Hunks))
	}
	hunk := main.Hunks[0]
	if hunk.OldStart != 1 || hunk.OldCount != 4 || hunk.NewStart != 1 || hunk.NewCount != 5 {
		t.Errorf("hunk header = %+v", hunk)
	}

	newFile := files[1]
	if !newFile.IsNew {
		t.Error("new.go should be flagged IsNew")
	}

	oldFile := files[2]
	if !oldFile.IsDeleted {
		t.Error("old.go should be flagged IsDeleted")
	}
}

func TestParseHunkHeaderMissingCountsDefaultToOne(t *testing.T) {
	h := parseHunkHeader("@@ -1 +1,2 @@ func main()")
	if h.OldCount != 1 {
		t.Errorf("OldCount = %d, want 1", h.OldCount)
	}
	if h.NewCount != 2 {
		t.Errorf("NewCount = %d, want 2", h.NewCount)
	}
	if h.Header != "func main()" {
		t.Errorf("Header = %q, want %q", h.Header, "func main()")
	}
}

func TestPositionIndexCountsEveryBodyLine(t *testing.T) {
	files := Parse(sampleDiff)
	main := files[0]

	index := PositionIndex(main)

	// Hunk header is diff_position 1; " package main" is 2; blank context
	// line is 3; "-func main() {}" is 4 (no new_line entry); "+func main() {"
	// is 5 at new_line 3; "+\tprintln(...)" is 6 at new_line 4; "+}" is 7 at
	// new_line 5.
	if lp, ok := index[3]; !ok || lp.DiffPosition != 5 || !lp.IsAddition {
		t.Errorf("index[3] = %+v, ok=%v", lp, ok)
	}
	if lp, ok := index[5]; !ok || lp.DiffPosition != 7 {
		t.Errorf("index[5] = %+v, ok=%v", lp, ok)
	}
	if lp, ok := index[1]; !ok || lp.IsAddition {
		t.Errorf("index[1] (context line) = %+v, ok=%v", lp, ok)
	}
}

func TestPositionIndexEmptyForDeletedAndBinary(t *testing.T) {
	files := Parse(sampleDiff)
	deleted := files[2]
	if idx := PositionIndex(deleted); len(idx) != 0 {
		t.Errorf("PositionIndex(deleted) = %v, want empty", idx)
	}

	binary := FileDiff{NewPath: "image.png", IsBinary: true, Hunks: []Hunk{{Lines: []string{"+fake"}}}}
	if idx := PositionIndex(binary); len(idx) != 0 {
		t.Errorf("PositionIndex(binary) = %v, want empty", idx)
	}
}

func TestPathFilterIncludeExclude(t *testing.T) {
	pf, err := NewPathFilter([]string{"**/*.go"}, []string{"**/*_test.go", "vendor/**"})
	if err != nil {
		t.Fatalf("NewPathFilter: %v", err)
	}

	cases := map[string]bool{
		"main.go":                true,
		"internal/pkg/file.go":   true,
		"internal/pkg/file_test.go": false,
		"vendor/lib/thing.go":    false,
		"README.md":              false,
	}
	for path, want := range cases {
		if got := pf.Allows(path); got != want {
			t.Errorf("Allows(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestPathFilterEmptyIncludeMeansAll(t *testing.T) {
	pf, err := NewPathFilter(nil, []string{"**/*.md"})
	if err != nil {
		t.Fatalf("NewPathFilter: %v", err)
	}
	if !pf.Allows("anything.go") {
		t.Error("empty include list should allow any non-excluded path")
	}
	if pf.Allows("docs/readme.md") {
		t.Error("excluded pattern should still reject")
	}
}
