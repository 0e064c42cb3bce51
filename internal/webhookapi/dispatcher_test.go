package webhookapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/aireviewer/reviewerd/internal/commands"
	"github.com/aireviewer/reviewerd/internal/model"
	"github.com/aireviewer/reviewerd/internal/scheduler"
	"github.com/aireviewer/reviewerd/internal/store"
)

const testWebhookSecret = "test-shared-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeCommentClient is a no-op CommentClient for tests that never exercise
// the direct-comment path.
type fakeCommentClient struct {
	posted []string
}

func (f *fakeCommentClient) CreateIssueComment(ctx context.Context, installationID int64, owner, repo string, number int, body string) (int64, error) {
	f.posted = append(f.posted, body)
	return 0, nil
}

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, d *Dispatcher, eventType string, body string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/host", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Github-Event", eventType)
	req.Header.Set("X-Hub-Signature-256", signBody([]byte(body)))
	c.Request = req

	d.HandleWebhook(c)
	return rec
}

func pullRequestEventBody(action, fullName string, number int, headSHA string) string {
	return fmt.Sprintf(`{
		"action": %q,
		"number": %d,
		"pull_request": {"number": %d, "head": {"sha": %q}},
		"repository": {"full_name": %q}
	}`, action, number, number, headSHA, fullName)
}

func issueCommentEventBody(body, fullName string, prNumber int, commenter string) string {
	return fmt.Sprintf(`{
		"action": "created",
		"issue": {"number": %d, "pull_request": {"url": "https://api.github.com/..."}},
		"comment": {"body": %q, "user": {"login": %q}},
		"repository": {"full_name": %q},
		"installation": {"id": 42}
	}`, prNumber, body, commenter, fullName)
}

func installationEventBody(action string, githubInstallationID int64, ownerLogin string, repoIDs []int64, repoNames []string) string {
	var repos strings.Builder
	for i, id := range repoIDs {
		if i > 0 {
			repos.WriteString(",")
		}
		fmt.Fprintf(&repos, `{"id": %d, "full_name": %q, "default_branch": "main"}`, id, repoNames[i])
	}
	return fmt.Sprintf(`{
		"action": %q,
		"installation": {"id": %d, "account": {"login": %q, "id": 9001, "type": "Organization"}},
		"repositories": [%s],
		"sender": {"login": "an-admin"}
	}`, action, githubInstallationID, ownerLogin, repos.String())
}

func installationRepositoriesEventBody(action string, githubInstallationID int64, added, removed []map[string]interface{}) string {
	toJSON := func(repos []map[string]interface{}) string {
		var b strings.Builder
		for i, r := range repos {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, `{"id": %v, "full_name": %q, "default_branch": "main"}`, r["id"], r["full_name"])
		}
		return b.String()
	}
	return fmt.Sprintf(`{
		"action": %q,
		"installation": {"id": %d},
		"repositories_added": [%s],
		"repositories_removed": [%s]
	}`, action, githubInstallationID, toJSON(added), toJSON(removed))
}

type dispatcherHarness struct {
	store   store.Store
	cleanup func()
	sched   *scheduler.Scheduler
	d       *Dispatcher
}

func newDispatcherHarness(t *testing.T) *dispatcherHarness {
	t.Helper()
	s, cleanup := store.SetupTestDB(t)
	sched := scheduler.New(2, nil)
	parser := commands.NewParser([]string{"@reviewer"})
	d := New(s, sched, parser, &fakeCommentClient{}, testWebhookSecret, 30)
	return &dispatcherHarness{store: s, cleanup: cleanup, sched: sched, d: d}
}

func TestHandleWebhook_InvalidSignatureRejected(t *testing.T) {
	h := newDispatcherHarness(t)
	defer h.cleanup()

	body := pullRequestEventBody("opened", "test-org/test-repo", 5, "deadbeef")
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/host", strings.NewReader(body))
	req.Header.Set("X-Github-Event", "pull_request")
	req.Header.Set("X-Hub-Signature-256", "sha256=0000000000000000000000000000000000000000000000000000000000000000")
	c.Request = req

	h.d.HandleWebhook(c)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if h.sched.Stats().PendingCount != 0 {
		t.Fatal("an unverified webhook must never schedule a job")
	}
}

func TestHandleWebhook_PullRequestOpenedSchedulesDebouncedReview(t *testing.T) {
	h := newDispatcherHarness(t)
	defer h.cleanup()

	inst := store.CreateTestInstallation(t, h.store)
	store.CreateTestRepository(t, h.store, inst.ID, func(r *model.Repository) {
		r.FullName = "acme/widgets"
	})

	rec := postWebhook(t, h.d, "pull_request", pullRequestEventBody("opened", "acme/widgets", 5, "aaaa111"))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	stats := h.sched.Stats()
	if stats.PendingCount != 1 {
		t.Fatalf("PendingCount = %d, want 1", stats.PendingCount)
	}
	if stats.KeyCount != 1 {
		t.Fatalf("KeyCount = %d, want 1", stats.KeyCount)
	}
}

// TestHandleWebhook_RapidSynchronizeCollapsesToOneJob reproduces the spec's
// debounce-and-supersede scenario: two pull_request webhooks for the same PR
// arriving well inside the debounce window collapse onto a single PENDING
// job under the shared lock key, carrying the latest head SHA.
func TestHandleWebhook_RapidSynchronizeCollapsesToOneJob(t *testing.T) {
	h := newDispatcherHarness(t)
	defer h.cleanup()

	inst := store.CreateTestInstallation(t, h.store)
	store.CreateTestRepository(t, h.store, inst.ID, func(r *model.Repository) {
		r.FullName = "acme/widgets"
	})

	postWebhook(t, h.d, "pull_request", pullRequestEventBody("synchronize", "acme/widgets", 5, "sha-one"))
	postWebhook(t, h.d, "pull_request", pullRequestEventBody("synchronize", "acme/widgets", 5, "sha-two"))

	stats := h.sched.Stats()
	if stats.PendingCount != 1 {
		t.Fatalf("PendingCount = %d, want 1 (second push should replace, not append)", stats.PendingCount)
	}
	if stats.KeyCount != 1 {
		t.Fatalf("KeyCount = %d, want 1 (same lock key for both deliveries)", stats.KeyCount)
	}
}

func TestHandleWebhook_PullRequestClosedIgnored(t *testing.T) {
	h := newDispatcherHarness(t)
	defer h.cleanup()

	inst := store.CreateTestInstallation(t, h.store)
	store.CreateTestRepository(t, h.store, inst.ID, func(r *model.Repository) {
		r.FullName = "acme/widgets"
	})

	rec := postWebhook(t, h.d, "pull_request", pullRequestEventBody("closed", "acme/widgets", 5, "aaaa111"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if h.sched.Stats().PendingCount != 0 {
		t.Fatal("a closed action must never schedule a review job")
	}
}

func TestHandleWebhook_PullRequestUnknownRepositoryIgnored(t *testing.T) {
	h := newDispatcherHarness(t)
	defer h.cleanup()

	rec := postWebhook(t, h.d, "pull_request", pullRequestEventBody("opened", "acme/not-installed", 5, "aaaa111"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if h.sched.Stats().PendingCount != 0 {
		t.Fatal("an uninstalled repository must never schedule a review job")
	}
}

func TestHandleWebhook_IssueCommentWithTriggerSchedulesCommand(t *testing.T) {
	h := newDispatcherHarness(t)
	defer h.cleanup()

	inst := store.CreateTestInstallation(t, h.store)
	store.CreateTestRepository(t, h.store, inst.ID, func(r *model.Repository) {
		r.FullName = "acme/widgets"
	})

	rec := postWebhook(t, h.d, "issue_comment",
		issueCommentEventBody("@reviewer review", "acme/widgets", 5, "octocat"))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	if h.sched.Stats().PendingCount != 1 {
		t.Fatalf("PendingCount = %d, want 1", h.sched.Stats().PendingCount)
	}
}

func TestHandleWebhook_IssueCommentWithoutTriggerIgnored(t *testing.T) {
	h := newDispatcherHarness(t)
	defer h.cleanup()

	inst := store.CreateTestInstallation(t, h.store)
	store.CreateTestRepository(t, h.store, inst.ID, func(r *model.Repository) {
		r.FullName = "acme/widgets"
	})

	rec := postWebhook(t, h.d, "issue_comment",
		issueCommentEventBody("nice work on this PR", "acme/widgets", 5, "octocat"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if h.sched.Stats().PendingCount != 0 {
		t.Fatal("a comment with no trigger phrase must never schedule a command job")
	}
}

func TestHandleWebhook_InstallationCreatedSeedsRepositories(t *testing.T) {
	h := newDispatcherHarness(t)
	defer h.cleanup()

	rec := postWebhook(t, h.d, "installation",
		installationEventBody("created", 777, "acme-corp", []int64{501, 502}, []string{"acme-corp/api", "acme-corp/web"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	inst, err := h.store.Installation().GetByGitHubInstallationID(777)
	if err != nil {
		t.Fatalf("expected installation to be created: %v", err)
	}
	if !inst.IsActive {
		t.Fatal("a freshly created installation should be active")
	}

	repos, err := h.store.Repository().ListByInstallation(inst.ID)
	if err != nil {
		t.Fatalf("ListByInstallation: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("len(repos) = %d, want 2", len(repos))
	}
}

func TestHandleWebhook_InstallationDeletedRemovesInstallation(t *testing.T) {
	h := newDispatcherHarness(t)
	defer h.cleanup()

	store.CreateTestInstallation(t, h.store, func(i *model.Installation) {
		i.GitHubInstallationID = 888
	})

	rec := postWebhook(t, h.d, "installation", installationEventBody("deleted", 888, "acme-corp", nil, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	if _, err := h.store.Installation().GetByGitHubInstallationID(888); err == nil {
		t.Fatal("expected installation to be deleted")
	}
}

func TestHandleWebhook_InstallationSuspendAndUnsuspend(t *testing.T) {
	h := newDispatcherHarness(t)
	defer h.cleanup()

	store.CreateTestInstallation(t, h.store, func(i *model.Installation) {
		i.GitHubInstallationID = 999
	})

	postWebhook(t, h.d, "installation", installationEventBody("suspend", 999, "acme-corp", nil, nil))
	inst, err := h.store.Installation().GetByGitHubInstallationID(999)
	if err != nil {
		t.Fatalf("GetByGitHubInstallationID: %v", err)
	}
	if inst.IsActive {
		t.Fatal("expected installation to be suspended (inactive)")
	}

	postWebhook(t, h.d, "installation", installationEventBody("unsuspend", 999, "acme-corp", nil, nil))
	inst, err = h.store.Installation().GetByGitHubInstallationID(999)
	if err != nil {
		t.Fatalf("GetByGitHubInstallationID: %v", err)
	}
	if !inst.IsActive {
		t.Fatal("expected installation to be reactivated after unsuspend")
	}
}

func TestHandleWebhook_InstallationRepositoriesAddedAndRemoved(t *testing.T) {
	h := newDispatcherHarness(t)
	defer h.cleanup()

	inst := store.CreateTestInstallation(t, h.store, func(i *model.Installation) {
		i.GitHubInstallationID = 1010
	})
	existing := store.CreateTestRepository(t, h.store, inst.ID, func(r *model.Repository) {
		r.GitHubRepoID = 7001
		r.FullName = "acme-corp/legacy"
	})

	added := []map[string]interface{}{{"id": 7002, "full_name": "acme-corp/new-service"}}
	removed := []map[string]interface{}{{"id": existing.GitHubRepoID, "full_name": existing.FullName}}

	rec := postWebhook(t, h.d, "installation_repositories",
		installationRepositoriesEventBody("added", 1010, added, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	rec = postWebhook(t, h.d, "installation_repositories",
		installationRepositoriesEventBody("removed", 1010, nil, removed))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	repos, err := h.store.Repository().ListByInstallation(inst.ID)
	if err != nil {
		t.Fatalf("ListByInstallation: %v", err)
	}
	if len(repos) != 1 || repos[0].FullName != "acme-corp/new-service" {
		t.Fatalf("expected only the newly added repository to remain, got %+v", repos)
	}
}
