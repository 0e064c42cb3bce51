package store

import (
	"testing"
	"time"

	"github.com/aireviewer/reviewerd/internal/model"
)

func TestReviewUpdateStatusToRunningIfPending(t *testing.T) {
	s, cleanup := SetupTestDB(t)
	defer cleanup()

	installation := CreateTestInstallation(t, s)
	repository := CreateTestRepository(t, s, installation.ID)
	review := CreateTestReview(t, s, repository.ID)

	transitioned, err := s.Review().UpdateStatusToRunningIfPending(review.ID, time.Now())
	if err != nil {
		t.Fatalf("UpdateStatusToRunningIfPending: %v", err)
	}
	if !transitioned {
		t.Fatal("expected PENDING -> IN_PROGRESS transition to succeed")
	}

	// A second call must be a no-op: the row is no longer PENDING.
	transitioned, err = s.Review().UpdateStatusToRunningIfPending(review.ID, time.Now())
	if err != nil {
		t.Fatalf("UpdateStatusToRunningIfPending (second call): %v", err)
	}
	if transitioned {
		t.Fatal("expected second transition attempt to report false")
	}

	got, err := s.Review().GetByID(review.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != model.ReviewStatusInProgress {
		t.Errorf("Status = %q, want %q", got.Status, model.ReviewStatusInProgress)
	}
}

func TestReviewUpdateStatusIfAllowed(t *testing.T) {
	s, cleanup := SetupTestDB(t)
	defer cleanup()

	installation := CreateTestInstallation(t, s)
	repository := CreateTestRepository(t, s, installation.ID)
	review := CreateTestReview(t, s, repository.ID, func(r *model.Review) {
		r.Status = model.ReviewStatusInProgress
	})

	rows, err := s.Review().UpdateStatusIfAllowed(review.ID, model.ReviewStatusSuperseded,
		[]model.ReviewStatus{model.ReviewStatusInProgress})
	if err != nil {
		t.Fatalf("UpdateStatusIfAllowed: %v", err)
	}
	if rows != 1 {
		t.Fatalf("rows affected = %d, want 1", rows)
	}

	// A terminal status can no longer be moved by UpdateStatusIfAllowed with
	// the same allowed-from set.
	rows, err = s.Review().UpdateStatusIfAllowed(review.ID, model.ReviewStatusFailed,
		[]model.ReviewStatus{model.ReviewStatusInProgress})
	if err != nil {
		t.Fatalf("UpdateStatusIfAllowed (already terminal): %v", err)
	}
	if rows != 0 {
		t.Fatalf("rows affected = %d, want 0 once superseded", rows)
	}
}

func TestReviewCommentsAndDiffPosition(t *testing.T) {
	s, cleanup := SetupTestDB(t)
	defer cleanup()

	installation := CreateTestInstallation(t, s)
	repository := CreateTestRepository(t, s, installation.ID)
	review := CreateTestReview(t, s, repository.ID)

	pos := 12
	comment := &model.ReviewComment{
		ReviewID:     review.ID,
		FilePath:     "main.go",
		LineNumber:   42,
		DiffPosition: &pos,
		Severity:     model.CommentSeverityWarning,
		Category:     "error-handling",
		Message:      "ignored error return value",
	}
	if err := s.Review().CreateComment(comment); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	unmapped := &model.ReviewComment{
		ReviewID:   review.ID,
		FilePath:   "main.go",
		LineNumber: 100,
		Severity:   model.CommentSeverityNitpick,
		Category:   "style",
		Message:    "outside any hunk",
	}
	if err := s.Review().CreateComment(unmapped); err != nil {
		t.Fatalf("CreateComment (unmapped): %v", err)
	}

	comments, err := s.Review().GetCommentsByReviewID(review.ID)
	if err != nil {
		t.Fatalf("GetCommentsByReviewID: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
	for _, c := range comments {
		if c.FilePath == "main.go" && c.LineNumber == 42 && c.DiffPosition == nil {
			t.Error("mapped comment should retain its DiffPosition")
		}
		if c.LineNumber == 100 && c.DiffPosition != nil {
			t.Error("unmapped comment should have a nil DiffPosition")
		}
	}
}

func TestReviewListPendingOrRunning(t *testing.T) {
	s, cleanup := SetupTestDB(t)
	defer cleanup()

	installation := CreateTestInstallation(t, s)
	repository := CreateTestRepository(t, s, installation.ID)

	pending := CreateTestReview(t, s, repository.ID)
	running := CreateTestReview(t, s, repository.ID, func(r *model.Review) {
		r.PRNumber = 2
		r.Status = model.ReviewStatusInProgress
	})
	CreateTestReview(t, s, repository.ID, func(r *model.Review) {
		r.PRNumber = 3
		r.Status = model.ReviewStatusCompleted
	})

	list, err := s.Review().ListPendingOrRunning()
	if err != nil {
		t.Fatalf("ListPendingOrRunning: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d reviews, want 2", len(list))
	}
	ids := map[string]bool{}
	for _, r := range list {
		ids[r.ID] = true
	}
	if !ids[pending.ID] || !ids[running.ID] {
		t.Error("ListPendingOrRunning should include both the pending and running reviews")
	}
}
