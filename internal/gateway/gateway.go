// Package gateway prepares every backend call of the sync client: it resolves the identity
// headers and bounds each call by its time budget.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"docvault/internal/config"
	"docvault/internal/identity"
	"docvault/internal/logging"
)

const (
	// IdentityHeader carries the caller's identity on every request.
	IdentityHeader = "X-User-Email"
	// AuthorizationHeader carries the bearer token when one could be obtained.
	AuthorizationHeader = "Authorization"
)

// ErrNotAuthenticated is returned when no identity can be resolved.
var ErrNotAuthenticated = errors.New("not authenticated")

// TimeoutError reports that a call exceeded its budget and was aborted.
type TimeoutError struct {
	Op     string
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Budget)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// Budgets are the per-operation time limits.
type Budgets struct {
	List     time.Duration
	Update   time.Duration
	Trash    time.Duration
	Delete   time.Duration
	Create   time.Duration
	Download time.Duration
	Token    time.Duration
}

// DefaultBudgets returns the standard limits: 10s for list and mutations, 30s for create,
// 60s for download and 3s for obtaining a bearer token.
func DefaultBudgets() Budgets {
	return Budgets{
		List:     10 * time.Second,
		Update:   10 * time.Second,
		Trash:    10 * time.Second,
		Delete:   10 * time.Second,
		Create:   30 * time.Second,
		Download: 60 * time.Second,
		Token:    3 * time.Second,
	}
}

// BudgetsFromConfig fills unset values from DefaultBudgets.
func BudgetsFromConfig(c config.BudgetConfig) Budgets {
	b := DefaultBudgets()
	pick := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	pick(&b.List, c.List)
	pick(&b.Update, c.Update)
	pick(&b.Trash, c.Trash)
	pick(&b.Delete, c.Delete)
	pick(&b.Create, c.Create)
	pick(&b.Download, c.Download)
	pick(&b.Token, c.Token)
	return b
}

// Headers are the resolved identity headers of one call.
type Headers struct {
	Identity string
	Token    string
}

// Apply sets the headers on req. The bearer token is only sent when present.
func (h Headers) Apply(req *http.Request) {
	req.Header.Set(IdentityHeader, h.Identity)
	if h.Token != "" {
		req.Header.Set(AuthorizationHeader, "Bearer "+h.Token)
	}
}

// Gateway resolves headers and enforces budgets.
type Gateway struct {
	identity identity.Provider
	tokens   identity.TokenSource
	budgets  Budgets
	log      logging.Logger
}

type Option func(*Gateway)

func WithTokenSource(ts identity.TokenSource) Option {
	return func(g *Gateway) {
		if ts != nil {
			g.tokens = ts
		}
	}
}

func WithBudgets(b Budgets) Option {
	return func(g *Gateway) { g.budgets = b }
}

func WithLogger(l logging.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}

// New builds a Gateway. Without WithTokenSource no bearer token is ever attached.
func New(p identity.Provider, opts ...Option) *Gateway {
	g := &Gateway{
		identity: p,
		tokens:   identity.NoopTokenSource{},
		budgets:  DefaultBudgets(),
		log:      logging.Nop{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Budgets() Budgets { return g.budgets }

// Identity returns the caller's identity or ErrNotAuthenticated.
func (g *Gateway) Identity(ctx context.Context) (string, error) {
	if g.identity == nil {
		return "", ErrNotAuthenticated
	}
	id, err := g.identity.Identity(ctx)
	if err == nil && id == "" {
		err = identity.ErrNoIdentity
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	return id, nil
}

// ResolveHeaders always yields the identity header; the bearer token is best-effort and a failure
// to obtain one within the token budget is logged, not returned.
func (g *Gateway) ResolveHeaders(ctx context.Context) (Headers, error) {
	id, err := g.Identity(ctx)
	if err != nil {
		return Headers{}, err
	}
	h := Headers{Identity: id}

	tok, err := WithTimeout(ctx, "token", g.budgets.Token, func(ctx context.Context) (string, error) {
		return g.tokens.Token(ctx, id)
	})
	switch {
	case err == nil:
		h.Token = tok
	case errors.Is(err, identity.ErrNoTokenIssuer):
	default:
		g.log.Warn(ctx, "bearer token unavailable, continuing with identity header", "error", err)
	}
	return h, nil
}

// WithTimeout runs call bounded by budget. When the budget elapses the call's context is
// cancelled and a *TimeoutError is returned immediately, even if call ignores its context.
// Cancellation of the parent context is reported as is.
func WithTimeout[T any](ctx context.Context, op string, budget time.Duration, call func(context.Context) (T, error)) (T, error) {
	var zero T
	if budget <= 0 {
		return call(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call(callCtx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return zero, &TimeoutError{Op: op, Budget: budget}
		}
		return r.val, r.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Op: op, Budget: budget}
	}
}
