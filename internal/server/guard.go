package server

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/gridweaver/internal/gateway"
	"github.com/leapstack-labs/gridweaver/pkg/core"
)

// Session values consulted by the session read guard.
const (
	SessionAllKey         = "all_definitions" // bool: every definition is readable
	SessionDefinitionsKey = "definitions"     // []string: readable definition ids
)

// DefaultSessionName is the cookie name used when none is configured.
const DefaultSessionName = "gridweaver"

// NewCookieStore creates the session store backing SessionReadGuard.
func NewCookieStore(secret string) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.MaxAge(86400 * 7)
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

// SessionReadGuard allows a read when the caller's session grants it.
// It must run behind the server's middleware so the request is in ctx.
func SessionReadGuard(store sessions.Store, name string) gateway.ReadGuard {
	if name == "" {
		name = DefaultSessionName
	}
	return func(ctx context.Context, id string) error {
		r, ok := RequestFromContext(ctx)
		if !ok {
			return fmt.Errorf("%w: no request in context", core.ErrForbidden)
		}
		session, err := store.Get(r, name)
		if err != nil || session.IsNew {
			return fmt.Errorf("%w: no session", core.ErrForbidden)
		}
		if all, _ := session.Values[SessionAllKey].(bool); all {
			return nil
		}
		if ids, _ := session.Values[SessionDefinitionsKey].([]string); slices.Contains(ids, id) {
			return nil
		}
		return fmt.Errorf("%w: definition %s not granted", core.ErrForbidden, id)
	}
}
