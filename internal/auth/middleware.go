package auth

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/promptguild/promptguild/internal/api/respond"
	"github.com/promptguild/promptguild/internal/model"
	"github.com/promptguild/promptguild/internal/store"
)

var errNoCredentials = errors.New("missing Authorization header")

// ExtractBearer returns the token of an "Authorization: Bearer <token>" header.
// Browsers cannot set headers on websocket upgrades, so an access_token query
// parameter is accepted there.
func ExtractBearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		if tok := r.URL.Query().Get("access_token"); tok != "" && isUpgrade(r) {
			return tok, nil
		}
		return "", errNoCredentials
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.New("invalid Authorization header format, expected 'Bearer <token>'")
	}
	return strings.TrimSpace(parts[1]), nil
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// Middleware attaches the verified caller to each request. Requests without
// credentials pass through anonymously; operations that need a caller fail
// later with Unauthenticated. Presented but invalid credentials get 401.
//
// The first time an identity is seen its user directory record is written so
// that invitations by email can find it. Identities are remembered for
// signInTTL, after which the record is refreshed; at most maxSeen are kept.
type Middleware struct {
	authn Authenticator
	users store.Users
	log   zerolog.Logger

	mu      sync.Mutex
	seen    map[Identity]time.Time // identity -> when its record was written
	ttl     time.Duration
	maxSeen int
	now     func() time.Time
}

const (
	signInTTL = time.Hour
	maxSeen   = 10000
)

func NewMiddleware(authn Authenticator, users store.Users, log zerolog.Logger) *Middleware {
	return &Middleware{
		authn:   authn,
		users:   users,
		log:     log,
		seen:    make(map[Identity]time.Time),
		ttl:     signInTTL,
		maxSeen: maxSeen,
		now:     time.Now,
	}
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := ExtractBearer(r)
		if errors.Is(err, errNoCredentials) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			respond.WriteUnauthorized(w, err.Error())
			return
		}
		id, err := m.authn.Authenticate(r.Context(), token)
		if err != nil {
			m.log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected credentials")
			respond.WriteUnauthorized(w, "invalid or expired token")
			return
		}
		m.recordSignIn(r, id)
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), id)))
	})
}

func (m *Middleware) recordSignIn(r *http.Request, id *Identity) {
	if m.users == nil {
		return
	}
	if m.recentlySeen(*id) {
		return
	}
	_, err := m.users.Upsert(r.Context(), &model.User{
		UserID:      id.UserID,
		Email:       id.Email,
		DisplayName: id.DisplayName,
	})
	if err != nil {
		// Retried on the next request.
		m.log.Error().Err(err).Str("user_id", id.UserID).Msg("user directory upsert failed")
		return
	}
	m.remember(*id)
}

func (m *Middleware) recentlySeen(id Identity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.seen[id]
	return ok && m.now().Sub(at) < m.ttl
}

func (m *Middleware) remember(id Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if _, ok := m.seen[id]; !ok && len(m.seen) >= m.maxSeen {
		for k, at := range m.seen {
			if now.Sub(at) >= m.ttl {
				delete(m.seen, k)
			}
		}
		// Still full: forget everyone. The cost is one extra upsert per identity.
		if len(m.seen) >= m.maxSeen {
			clear(m.seen)
		}
	}
	m.seen[id] = now
}
