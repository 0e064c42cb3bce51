// Package ghclient implements the HostingClient: a per-installation
// authenticated REST client over the code-hosting platform's GitHub App API.
package ghclient

import (
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/aireviewer/reviewerd/internal/reviewerr"
	"github.com/aireviewer/reviewerd/pkg/logger"
)

// appJWTValidity is the lifetime of the App-level JWT used to request
// installation tokens; GitHub rejects JWTs valid for more than 10 minutes.
const appJWTValidity = 10 * time.Minute

// appJWTClockSkew backdates iat to tolerate clock drift between this host
// and GitHub's.
const appJWTClockSkew = 60 * time.Second

// installationTokenSafetyMargin is subtracted from GitHub's advertised
// expiry so a token is never used right up to the instant it dies.
const installationTokenSafetyMargin = 60 * time.Second

// tokenCache is a process-wide, mutex-protected cache of installation
// access tokens, keyed by installation id.
type tokenCache struct {
	mu     sync.Mutex
	tokens map[int64]cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

func newTokenCache() *tokenCache {
	return &tokenCache{tokens: make(map[int64]cachedToken)}
}

func (c *tokenCache) get(installationID int64) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.tokens[installationID]
	if !ok || time.Now().After(entry.expiresAt.Add(-installationTokenSafetyMargin)) {
		return "", false
	}
	return entry.token, true
}

func (c *tokenCache) set(installationID int64, token string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[installationID] = cachedToken{token: token, expiresAt: expiresAt}
}

// evict drops a cached token ahead of its expiry, used when GitHub rejects
// it with 401 before our local expiry tracking catches up (e.g. the
// installation's permissions changed or the token was revoked early).
func (c *tokenCache) evict(installationID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, installationID)
}

// sweepStale drops any cached token that has already expired, including its
// safety margin. Intended to be wired into the scheduler's periodic
// housekeeping cron so the cache doesn't grow unboundedly across
// installations that have gone quiet.
func (c *tokenCache) sweepStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, entry := range c.tokens {
		if now.After(entry.expiresAt.Add(-installationTokenSafetyMargin)) {
			delete(c.tokens, id)
			removed++
		}
	}
	return removed
}

// appJWT mints a signed JSON Web Token asserting the GitHub App's identity,
// used to exchange for a per-installation access token.
func appJWT(appID int64, privateKey *rsa.PrivateKey) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-appJWTClockSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTValidity)),
		Issuer:    fmt.Sprintf("%d", appID),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(privateKey)
	if err != nil {
		return "", reviewerr.Wrap(reviewerr.KindInternalInvariant, "signing app jwt", err)
	}
	return signed, nil
}

// parsePrivateKey parses a PEM-encoded RSA private key as distributed by
// the hosting platform for a GitHub App.
func parsePrivateKey(pem string) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, reviewerr.Wrap(reviewerr.KindInternalInvariant, "parsing app private key", err)
	}
	return key, nil
}

func (c *Client) logTokenRefresh(installationID int64) {
	logger.Get().Debug("refreshed installation access token", zap.Int64("installation_id", installationID))
}
