package ghclient

import (
	"context"
	"crypto/rsa"
	"errors"
	"io"
	"net/http"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/aireviewer/reviewerd/internal/reviewerr"
	"github.com/aireviewer/reviewerd/pkg/logger"
)

// Client is a per-installation authenticated REST client to the
// code-hosting platform. One Client instance is shared across all
// installations; InstallationClient(id) returns a *github.Client bound to
// that installation's current access token.
type Client struct {
	appID      int64
	privateKey *rsa.PrivateKey
	baseClient *github.Client // authenticated as the App itself, for token exchange
	cache      *tokenCache
}

// New constructs a Client from the GitHub App's numeric id and PEM-encoded
// RSA private key.
func New(appID int64, privateKeyPEM string) (*Client, error) {
	key, err := parsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	return &Client{
		appID:      appID,
		privateKey: key,
		baseClient: github.NewClient(nil),
		cache:      newTokenCache(),
	}, nil
}

// SweepStaleTokens evicts expired cache entries; wired into the scheduler's
// housekeeping cron.
func (c *Client) SweepStaleTokens() int {
	return c.cache.sweepStale()
}

// installationClient returns a *github.Client authenticated as the given
// installation, refreshing and caching its access token as needed.
func (c *Client) installationClient(ctx context.Context, installationID int64) (*github.Client, error) {
	token, ok := c.cache.get(installationID)
	if !ok {
		var err error
		token, err = c.refreshInstallationToken(ctx, installationID)
		if err != nil {
			return nil, err
		}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)
	return github.NewClient(httpClient), nil
}

func (c *Client) refreshInstallationToken(ctx context.Context, installationID int64) (string, error) {
	signed, err := appJWT(c.appID, c.privateKey)
	if err != nil {
		return "", err
	}

	jwtClient := github.NewClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: signed})))

	installToken, _, err := jwtClient.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		logger.Get().Error("failed to create installation access token",
			zap.Error(err), zap.Int64("installation_id", installationID))
		return "", reviewerr.Wrap(classifyHTTPErr(err), "creating installation access token", err)
	}

	c.cache.set(installationID, installToken.GetToken(), installToken.GetExpiresAt().Time)
	c.logTokenRefresh(installationID)

	return installToken.GetToken(), nil
}

// withReauth runs op against an installation-authenticated client. If op
// fails with an HTTP 401 (the cached token was rejected, e.g. revoked or
// the installation's permissions changed before our local expiry caught
// up), the cached token is evicted and op is retried exactly once against
// a freshly minted token, per spec.md §4.3.
func (c *Client) withReauth(ctx context.Context, installationID int64, op func(gh *github.Client) error) error {
	gh, err := c.installationClient(ctx, installationID)
	if err != nil {
		return err
	}

	err = op(gh)
	if err != nil && isUnauthorized(err) {
		logger.Get().Warn("installation token rejected with 401, retrying with a fresh token",
			zap.Int64("installation_id", installationID))
		c.cache.evict(installationID)

		gh, err = c.installationClient(ctx, installationID)
		if err != nil {
			return err
		}
		err = op(gh)
	}
	return err
}

// isUnauthorized reports whether err is a go-github *github.ErrorResponse
// carrying a 401 status.
func isUnauthorized(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusUnauthorized
	}
	return false
}

// PullRequest is the subset of PR metadata the review pipeline needs.
type PullRequest struct {
	Number       int
	Title        string
	Body         string
	Author       string
	HeadSHA      string
	BaseSHA      string
	ChangedFiles int
}

// GetPullRequest reads PR metadata.
func (c *Client) GetPullRequest(ctx context.Context, installationID int64, owner, repo string, number int) (*PullRequest, error) {
	var pr *github.PullRequest
	err := c.withReauth(ctx, installationID, func(gh *github.Client) error {
		var opErr error
		pr, _, opErr = gh.PullRequests.Get(ctx, owner, repo, number)
		return opErr
	})
	if err != nil {
		logger.Get().Error("failed to get pull request", zap.Error(err),
			zap.String("owner", owner), zap.String("repo", repo), zap.Int("number", number))
		return nil, reviewerr.Wrap(classifyHTTPErr(err), "getting pull request", err)
	}

	return &PullRequest{
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		Author:       pr.GetUser().GetLogin(),
		HeadSHA:      pr.GetHead().GetSHA(),
		BaseSHA:      pr.GetBase().GetSHA(),
		ChangedFiles: pr.GetChangedFiles(),
	}, nil
}

// GetPullRequestDiff returns the raw unified diff text for a PR.
func (c *Client) GetPullRequestDiff(ctx context.Context, installationID int64, owner, repo string, number int) (string, error) {
	var raw string
	err := c.withReauth(ctx, installationID, func(gh *github.Client) error {
		var opErr error
		raw, _, opErr = gh.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
		return opErr
	})
	if err != nil {
		logger.Get().Error("failed to get pull request diff", zap.Error(err),
			zap.String("owner", owner), zap.String("repo", repo), zap.Int("number", number))
		return "", reviewerr.Wrap(classifyHTTPErr(err), "getting pull request diff", err)
	}
	return raw, nil
}

// ChangedFile is one entry in a PR's changed-files listing.
type ChangedFile struct {
	Path   string
	Status string
}

// GetPullRequestFiles returns the paginated list of files changed in a PR.
func (c *Client) GetPullRequestFiles(ctx context.Context, installationID int64, owner, repo string, number int) ([]ChangedFile, error) {
	var result []ChangedFile
	opts := &github.ListOptions{PerPage: 100}
	for {
		var (
			files []*github.CommitFile
			resp  *github.Response
		)
		err := c.withReauth(ctx, installationID, func(gh *github.Client) error {
			var opErr error
			files, resp, opErr = gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
			return opErr
		})
		if err != nil {
			logger.Get().Error("failed to list pull request files", zap.Error(err),
				zap.String("owner", owner), zap.String("repo", repo), zap.Int("number", number))
			return nil, reviewerr.Wrap(classifyHTTPErr(err), "listing pull request files", err)
		}
		for _, f := range files {
			result = append(result, ChangedFile{Path: f.GetFilename(), Status: f.GetStatus()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return result, nil
}

// GetFileContent returns the raw bytes of path at ref.
func (c *Client) GetFileContent(ctx context.Context, installationID int64, owner, repo, path, ref string) ([]byte, error) {
	var data []byte
	err := c.withReauth(ctx, installationID, func(gh *github.Client) error {
		rc, _, opErr := gh.Repositories.DownloadContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
		if opErr != nil {
			return opErr
		}
		defer rc.Close()

		var readErr error
		data, readErr = io.ReadAll(rc)
		return readErr
	})
	if err != nil {
		return nil, reviewerr.Wrap(classifyHTTPErr(err), "getting file content", err)
	}
	return data, nil
}

// ReviewComment is one inline comment to attach to a CreateReview call.
type ReviewComment struct {
	Path     string
	Position int
	Body     string
}

// CreateReview posts a review with inline comments against commit.
func (c *Client) CreateReview(ctx context.Context, installationID int64, owner, repo string, number int, commit, body, event string, comments []ReviewComment) (int64, error) {
	req := &github.PullRequestReviewRequest{
		CommitID: &commit,
		Body:     &body,
		Event:    &event,
	}
	for _, cm := range comments {
		path, pos, text := cm.Path, cm.Position, cm.Body
		req.Comments = append(req.Comments, &github.DraftReviewComment{
			Path:     &path,
			Position: &pos,
			Body:     &text,
		})
	}

	var review *github.PullRequestReview
	err := c.withReauth(ctx, installationID, func(gh *github.Client) error {
		var opErr error
		review, _, opErr = gh.PullRequests.CreateReview(ctx, owner, repo, number, req)
		return opErr
	})
	if err != nil {
		logger.Get().Error("failed to create pull request review", zap.Error(err),
			zap.String("owner", owner), zap.String("repo", repo), zap.Int("number", number))
		return 0, reviewerr.Wrap(classifyHTTPErr(err), "creating pull request review", err)
	}
	return review.GetID(), nil
}

// CreateIssueComment posts a top-level PR comment.
func (c *Client) CreateIssueComment(ctx context.Context, installationID int64, owner, repo string, number int, body string) (int64, error) {
	var comment *github.IssueComment
	err := c.withReauth(ctx, installationID, func(gh *github.Client) error {
		var opErr error
		comment, _, opErr = gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: &body})
		return opErr
	})
	if err != nil {
		logger.Get().Error("failed to create issue comment", zap.Error(err),
			zap.String("owner", owner), zap.String("repo", repo), zap.Int("number", number))
		return 0, reviewerr.Wrap(classifyHTTPErr(err), "creating issue comment", err)
	}
	return comment.GetID(), nil
}

// AddReaction posts a reaction to an issue comment.
func (c *Client) AddReaction(ctx context.Context, installationID int64, owner, repo string, commentID int64, reaction string) error {
	err := c.withReauth(ctx, installationID, func(gh *github.Client) error {
		_, _, opErr := gh.Reactions.CreateIssueCommentReaction(ctx, owner, repo, commentID, reaction)
		return opErr
	})
	if err != nil {
		return reviewerr.Wrap(classifyHTTPErr(err), "adding reaction", err)
	}
	return nil
}

// CheckRunOptions configures the creation/update of a commit check run.
type CheckRunOptions struct {
	Name       string
	HeadSHA    string
	Status     string // queued, in_progress, completed
	Conclusion string // success, failure, neutral, cancelled, skipped, timed_out; only set when Status == completed
	Title      string
	Summary    string
}

// CreateCheckRun creates a commit status indicator.
func (c *Client) CreateCheckRun(ctx context.Context, installationID int64, owner, repo string, opts CheckRunOptions) (int64, error) {
	req := github.CreateCheckRunOptions{
		Name:    opts.Name,
		HeadSHA: opts.HeadSHA,
		Status:  github.String(opts.Status),
		Output: &github.CheckRunOutput{
			Title:   github.String(opts.Title),
			Summary: github.String(opts.Summary),
		},
	}
	if opts.Conclusion != "" {
		req.Conclusion = github.String(opts.Conclusion)
	}

	var run *github.CheckRun
	err := c.withReauth(ctx, installationID, func(gh *github.Client) error {
		var opErr error
		run, _, opErr = gh.Checks.CreateCheckRun(ctx, owner, repo, req)
		return opErr
	})
	if err != nil {
		logger.Get().Error("failed to create check run", zap.Error(err),
			zap.String("owner", owner), zap.String("repo", repo))
		return 0, reviewerr.Wrap(classifyHTTPErr(err), "creating check run", err)
	}
	return run.GetID(), nil
}

// UpdateCheckRun transitions a check run's status/conclusion.
func (c *Client) UpdateCheckRun(ctx context.Context, installationID int64, owner, repo string, checkRunID int64, opts CheckRunOptions) error {
	req := github.UpdateCheckRunOptions{
		Name:   opts.Name,
		Status: github.String(opts.Status),
		Output: &github.CheckRunOutput{
			Title:   github.String(opts.Title),
			Summary: github.String(opts.Summary),
		},
	}
	if opts.Conclusion != "" {
		req.Conclusion = github.String(opts.Conclusion)
	}

	err := c.withReauth(ctx, installationID, func(gh *github.Client) error {
		_, _, opErr := gh.Checks.UpdateCheckRun(ctx, owner, repo, checkRunID, req)
		return opErr
	})
	if err != nil {
		logger.Get().Error("failed to update check run", zap.Error(err),
			zap.String("owner", owner), zap.String("repo", repo), zap.Int64("check_run_id", checkRunID))
		return reviewerr.Wrap(classifyHTTPErr(err), "updating check run", err)
	}
	return nil
}

// classifyHTTPErr maps a go-github error into the pipeline's error Kind:
// rate limits, 5xx, and 401 (retried once by withReauth already; if it
// still fails it's worth a full job retry after the next re-authentication)
// are transient, everything else (other 4xx, malformed requests) is
// permanent.
func classifyHTTPErr(err error) reviewerr.Kind {
	switch e := err.(type) {
	case *github.RateLimitError, *github.AbuseRateLimitError:
		return reviewerr.KindHostingTransient
	case *github.ErrorResponse:
		if e.Response == nil {
			return reviewerr.KindHostingTransient
		}
		if e.Response.StatusCode == http.StatusUnauthorized || e.Response.StatusCode >= 500 {
			return reviewerr.KindHostingTransient
		}
		return reviewerr.KindHostingPermanent
	default:
		// A network-level error (no structured response at all) is transient.
		return reviewerr.KindHostingTransient
	}
}
