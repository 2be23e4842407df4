package reolink

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// A token within this margin of its expiry is refreshed before use
const tokenRefreshMargin = time.Second * 30

// Token is a session token issued by the device's Login command
type Token struct {
	Value  string
	Expiry time.Time
}

// NeedsRefresh reports whether the token is within the refresh margin of its expiry
func (t Token) NeedsRefresh(now time.Time) bool {
	return t.Expiry.Add(-tokenRefreshMargin).Before(now)
}

// IsExpired reports whether the token is past its expiry
func (t Token) IsExpired(now time.Time) bool {
	return t.Expiry.Before(now)
}

// LoginFunc performs an unauthenticated login and returns a fresh token value
// and its lease
type LoginFunc func(ctx context.Context) (value string, lease time.Duration, err error)

// Credentials holds the login/password of a device account and the session
// token obtained with them.  All clones of a Client share one Credentials.
type Credentials struct {
	login    string
	password string

	mu    sync.RWMutex
	token *Token
	now   func() time.Time
}

func NewCredentials(login, password string) *Credentials {
	return &Credentials{
		login:    login,
		password: password,
		now:      time.Now,
	}
}

func hashOf(s string) string {
	sum := sha1.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// obfuscate secrets when stringified
//
func (c *Credentials) String() string {
	tok, ok := c.ReadToken()
	if !ok {
		return fmt.Sprintf("login [%s], password [%s], token [none]", c.login, hashOf(c.password))
	}

	return fmt.Sprintf("login [%s], password [%s], token [%s], tokenExpiry [%s]",
		c.login, hashOf(c.password), hashOf(tok.Value), tok.Expiry)
}

// Login returns the account name
func (c *Credentials) Login() string {
	return c.login
}

// ReadToken returns a copy of the cached token, if any
func (c *Credentials) ReadToken() (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == nil {
		return Token{}, false
	}
	return *c.token, true
}

// EnsureValid makes sure a token that does not need refreshing is cached,
// calling login when it is not.  Concurrent callers racing on a stale token
// result in a single call to login.
func (c *Credentials) EnsureValid(ctx context.Context, login LoginFunc) error {
	c.mu.RLock()
	fresh := c.token != nil && !c.token.NeedsRefresh(c.now())
	c.mu.RUnlock()

	if fresh {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Someone else may have refreshed while we waited for the lock
	if c.token != nil && !c.token.NeedsRefresh(c.now()) {
		return nil
	}

	value, lease, err := login(ctx)
	if err != nil {
		return errors.Wrapf(err, "logging in as %s", c.login)
	}

	c.token = &Token{
		Value:  value,
		Expiry: c.now().Add(lease),
	}

	return nil
}

// Invalidate forgets the cached token
func (c *Credentials) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}
