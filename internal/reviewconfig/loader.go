package reviewconfig

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/model"
	"github.com/aireviewer/reviewerd/internal/store"
	"github.com/aireviewer/reviewerd/pkg/logger"
)

// cacheTTL is how long a repository's cached .aireviewer.yaml is trusted
// before the Loader re-fetches it from the default branch.
const cacheTTL = 5 * time.Minute

const configFilePath = ".aireviewer.yaml"

// ContentFetcher is the subset of HostingClient the Loader needs to read a
// repository's config file from its default branch.
type ContentFetcher interface {
	GetFileContent(ctx context.Context, installationID int64, owner, repo, path, ref string) ([]byte, error)
}

// Loader loads a repository's review configuration, caching the parsed
// result on the Repository row for cacheTTL.
type Loader struct {
	repos   store.RepositoryStore
	fetcher ContentFetcher
}

// NewLoader builds a Loader backed by the given repository store and
// hosting-platform content fetcher.
func NewLoader(repos store.RepositoryStore, fetcher ContentFetcher) *Loader {
	return &Loader{repos: repos, fetcher: fetcher}
}

// Load returns repo's effective Config, using the cached ConfigYAML when
// fresh, otherwise fetching and parsing .aireviewer.yaml from the
// repository's default branch. A missing or malformed config file is not
// an error: it degrades to Default().
func (l *Loader) Load(ctx context.Context, repo *model.Repository, githubInstallationID int64, owner, repoName string) Config {
	if cfg, ok := cachedConfig(repo); ok {
		return cfg
	}

	cfg := Default()
	raw, err := l.fetcher.GetFileContent(ctx, githubInstallationID, owner, repoName, configFilePath, repo.DefaultBranch)
	if err == nil {
		if parsed, parseErr := Parse(raw); parseErr == nil {
			cfg = parsed
		} else {
			logger.Get().Warn("malformed .aireviewer.yaml, using defaults",
				zap.String("repository", repo.FullName), zap.Error(parseErr))
		}
	}

	l.cache(repo, cfg)
	return cfg
}

// cachedConfig returns repo's cached Config if ConfigFetchedAt is within
// cacheTTL.
func cachedConfig(repo *model.Repository) (Config, bool) {
	if repo.ConfigYAML == nil || repo.ConfigFetchedAt == nil {
		return Config{}, false
	}
	if time.Since(*repo.ConfigFetchedAt) >= cacheTTL {
		return Config{}, false
	}

	data, err := json.Marshal(repo.ConfigYAML)
	if err != nil {
		return Config{}, false
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, false
	}
	return cfg, true
}

// cache persists cfg onto repo's ConfigYAML/ConfigFetchedAt columns,
// best-effort: a failure to write the cache does not fail Load.
func (l *Loader) cache(repo *model.Repository, cfg Config) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	var asMap model.JSONMap
	if err := json.Unmarshal(data, &asMap); err != nil {
		return
	}

	now := time.Now()
	if err := l.repos.UpdateConfig(repo.ID, asMap, now); err != nil {
		logger.Get().Warn("failed to cache repository config", zap.String("repository", repo.FullName), zap.Error(err))
		return
	}
	repo.ConfigYAML = asMap
	repo.ConfigFetchedAt = &now
}
