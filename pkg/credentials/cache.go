package credentials

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/modelmux/modelmux/pkg/routing"
)

// expiryBuffer is subtracted from the upstream expiry so callers never
// receive a token that expires mid-request.
const expiryBuffer = 300 * time.Second

// cachedToken is one account's token entry.
type cachedToken struct {
	value     string
	expiresAt time.Time
}

// entry is the per-account cache slot. The mutex is held across the whole
// check-and-maybe-refresh sequence, which is what makes concurrent expired
// callers collapse into one exchange.
type entry struct {
	mu    sync.Mutex
	token *cachedToken
}

// Cache caches one bearer token per backend account.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	// now is replaceable for tests.
	now func() time.Time

	// exchange performs the client-credentials flow; replaceable for tests.
	exchange func(ctx context.Context, cred routing.Credential) (string, time.Time, error)

	// OnExchange, when non-nil, is invoked after every token exchange
	// with its outcome.
	OnExchange func(account string, err error)
}

// NewCache creates an empty token cache.
func NewCache() *Cache {
	return &Cache{
		entries:  make(map[string]*entry),
		now:      time.Now,
		exchange: exchangeClientCredentials,
	}
}

// GetToken returns a live bearer token for the account, fetching a new one
// when the cached entry is missing or expired. Errors are not retried here;
// the single auth retry belongs to the caller.
func (c *Cache) GetToken(ctx context.Context, account *routing.Account) (string, error) {
	e := c.entryFor(account.Name)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.token != nil && c.now().Before(e.token.expiresAt) {
		return e.token.value, nil
	}

	token, expiresAt, err := c.exchange(ctx, account.Credential)
	if c.OnExchange != nil {
		c.OnExchange(account.Name, err)
	}
	if err != nil {
		return "", &ExchangeError{Account: account.Name, Cause: err}
	}
	if token == "" {
		return "", &EmptyTokenError{Account: account.Name}
	}

	e.token = &cachedToken{
		value:     token,
		expiresAt: expiresAt.Add(-expiryBuffer),
	}

	slog.Debug("refreshed backend token",
		"account", account.Name,
		"expires_at", e.token.expiresAt,
	)

	return token, nil
}

// Invalidate clears the account's cached token so the next GetToken is
// forced to re-fetch.
func (c *Cache) Invalidate(account *routing.Account) {
	e := c.entryFor(account.Name)

	e.mu.Lock()
	e.token = nil
	e.mu.Unlock()

	slog.Debug("invalidated backend token", "account", account.Name)
}

// entryFor returns the account's cache slot, creating it on first use.
func (c *Cache) entryFor(name string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok {
		e = &entry{}
		c.entries[name] = e
	}
	return e
}

// exchangeClientCredentials performs the OAuth2 client-credentials flow
// against the credential's token endpoint.
func exchangeClientCredentials(ctx context.Context, cred routing.Credential) (string, time.Time, error) {
	cfg := clientcredentials.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		TokenURL:     cred.TokenEndpoint,
	}

	token, err := cfg.Token(ctx)
	if err != nil {
		return "", time.Time{}, err
	}

	expiry := token.Expiry
	if token.ExpiresIn > 0 {
		expiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	return token.AccessToken, expiry, nil
}
