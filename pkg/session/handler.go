package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/benchtrack/benchtrack/internal/apperr"
	"github.com/benchtrack/benchtrack/internal/rest"
	"github.com/benchtrack/benchtrack/pkg/user"
	log "github.com/sirupsen/logrus"
)

// Header carries the session id on every authenticated request.
const Header = "X-Session-ID"

type contextKey string

const sessionKey contextKey = "session"

// IdentityResolver maps a login asserted by an upstream proxy to a user.
type IdentityResolver interface {
	GetUserByLogin(ctx context.Context, login string) (user.User, error)
}

type SessionDTO struct {
	SessionId string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
	UserId    int       `json:"userId"`
	Login     string    `json:"login"`
	IsAdmin   bool      `json:"admin"`
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Login godoc
// @Summary Return the session of the authenticated caller
// @Description The session is issued by the middleware from the trusted identity header, or
// @Description resolved from X-Session-ID when the caller already has one.
// @Tags Session
// @Produce json
// @Success 201 {object} SessionDTO
// @Failure 403 {object} rest.ErrorResponse "No identity"
// @Router /api/session [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	s, ok := CurrentSession(r.Context())
	if !ok {
		rest.WriteError(w, apperr.AccessDenied("no authenticated identity"))
		return
	}
	rest.WriteJSON(w, http.StatusCreated, SessionToDTO(s))
}

// Logout godoc
// @Summary Expire the current session
// @Tags Session
// @Success 204 "No Content"
// @Failure 403 {object} rest.ErrorResponse "No session"
// @Router /api/session/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s, ok := CurrentSession(r.Context())
	if !ok {
		rest.WriteError(w, apperr.AccessDenied("no session"))
		return
	}
	if err := h.store.Expire(r.Context(), s.Id); err != nil {
		rest.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Middleware resolves the caller of a request. An X-Session-ID header is looked up in store;
// otherwise, when identityHeader is set and present, the asserted login is resolved and a new
// session is issued and returned in the X-Session-ID response header.
// Requests with neither pass through anonymously and fail later where a caller is required.
func Middleware(store Store, identities IdentityResolver, identityHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get(Header); id != "" {
				s, err := store.Lookup(r.Context(), id)
				if err != nil {
					log.Debugf("rejected session: %v", err)
					rest.WriteError(w, err)
					return
				}
				next.ServeHTTP(w, r.WithContext(withSession(r.Context(), s)))
				return
			}

			login := ""
			if identityHeader != "" {
				login = r.Header.Get(identityHeader)
			}
			if login == "" {
				next.ServeHTTP(w, r)
				return
			}
			s, err := issue(r.Context(), store, identities, login)
			if err != nil {
				rest.WriteError(w, err)
				return
			}
			w.Header().Set(Header, s.Id)
			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), s)))
		})
	}
}

func issue(ctx context.Context, store Store, identities IdentityResolver, login string) (Session, error) {
	u, err := identities.GetUserByLogin(ctx, login)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Debugf("identity %s is not a known user", login)
		return Session{}, apperr.AccessDenied("unknown user %s", login)
	} else if err != nil {
		return Session{}, err
	}
	return store.Create(ctx, u.Caller())
}

// CurrentSession returns the session the middleware attached to ctx.
func CurrentSession(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

func withSession(ctx context.Context, s Session) context.Context {
	return user.WithCaller(context.WithValue(ctx, sessionKey, s), s.Caller)
}

func SessionToDTO(s Session) SessionDTO {
	return SessionDTO{
		SessionId: s.Id,
		ExpiresAt: s.ExpiresAt,
		UserId:    s.Caller.Id,
		Login:     s.Caller.Login,
		IsAdmin:   s.Caller.IsAdmin,
	}
}
