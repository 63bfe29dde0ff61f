package gateway

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/config"
	"docvault/internal/identity"
)

type tokenFunc func(ctx context.Context, id string) (string, error)

func (f tokenFunc) Token(ctx context.Context, id string) (string, error) { return f(ctx, id) }

func TestResolveHeaders(t *testing.T) {
	ctx := context.Background()

	t.Run("identity and token", func(t *testing.T) {
		g := New(identity.Static("a@example.com"), WithTokenSource(tokenFunc(func(ctx context.Context, id string) (string, error) {
			return "tok-" + id, nil
		})))

		h, err := g.ResolveHeaders(ctx)
		require.NoError(t, err)
		assert.Equal(t, Headers{Identity: "a@example.com", Token: "tok-a@example.com"}, h)

		req := httptest.NewRequest("GET", "/api/docs", nil)
		h.Apply(req)
		assert.Equal(t, "a@example.com", req.Header.Get(IdentityHeader))
		assert.Equal(t, "Bearer tok-a@example.com", req.Header.Get(AuthorizationHeader))
	})

	t.Run("token failure is not fatal", func(t *testing.T) {
		g := New(identity.Static("a@example.com"), WithTokenSource(tokenFunc(func(ctx context.Context, id string) (string, error) {
			return "", errors.New("idp down")
		})))

		h, err := g.ResolveHeaders(ctx)
		require.NoError(t, err)
		assert.Equal(t, "a@example.com", h.Identity)
		assert.Empty(t, h.Token)

		req := httptest.NewRequest("GET", "/api/docs", nil)
		h.Apply(req)
		assert.Empty(t, req.Header.Get(AuthorizationHeader))
	})

	t.Run("slow token source is cut at the token budget", func(t *testing.T) {
		b := DefaultBudgets()
		b.Token = 20 * time.Millisecond
		g := New(identity.Static("a@example.com"), WithBudgets(b), WithTokenSource(tokenFunc(func(ctx context.Context, id string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})))

		start := time.Now()
		h, err := g.ResolveHeaders(ctx)
		require.NoError(t, err)
		assert.Empty(t, h.Token)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("no identity", func(t *testing.T) {
		g := New(identity.Static(""))
		_, err := g.ResolveHeaders(ctx)
		assert.ErrorIs(t, err, ErrNotAuthenticated)

		_, err = New(nil).Identity(ctx)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}

func TestWithTimeout(t *testing.T) {
	ctx := context.Background()

	t.Run("completes within budget", func(t *testing.T) {
		v, err := WithTimeout(ctx, "list", time.Second, func(ctx context.Context) (int, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("propagates call error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := WithTimeout(ctx, "list", time.Second, func(ctx context.Context) (int, error) {
			return 0, boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("context aware call times out", func(t *testing.T) {
		_, err := WithTimeout(ctx, "update", 10*time.Millisecond, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "update", te.Op)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("call ignoring its context is abandoned", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		start := time.Now()
		_, err := WithTimeout(ctx, "download", 10*time.Millisecond, func(ctx context.Context) (int, error) {
			<-release
			return 1, nil
		})
		var te *TimeoutError
		assert.ErrorAs(t, err, &te)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("parent cancellation is not a timeout", func(t *testing.T) {
		parent, cancel := context.WithCancel(ctx)
		cancel()
		_, err := WithTimeout(parent, "list", time.Second, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		var te *TimeoutError
		assert.False(t, errors.As(err, &te))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBudgetsFromConfig(t *testing.T) {
	b := BudgetsFromConfig(config.BudgetConfig{Create: 45 * time.Second})
	assert.Equal(t, 45*time.Second, b.Create)
	assert.Equal(t, 10*time.Second, b.List)
	assert.Equal(t, 60*time.Second, b.Download)
}
