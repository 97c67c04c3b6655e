package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/devilmonastery/sessionshare/internal/auth"
	"github.com/devilmonastery/sessionshare/internal/config"
	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/internal/domain/services"
	"github.com/devilmonastery/sessionshare/internal/pkg/logger"
	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
	"github.com/devilmonastery/sessionshare/internal/pkg/urlutil"
	"github.com/devilmonastery/sessionshare/web/internal/session"
)

// Pipeline is the shared-session login pipeline the gate drives
type Pipeline interface {
	Ready() bool
	Settings() config.Settings
	Login(ctx context.Context, token string) (*services.LoginResult, error)
}

// UserLookup loads the account behind a session uid
type UserLookup interface {
	GetUser(ctx context.Context, uid int64) (*entities.User, error)
}

// GateOptions configures a SessionGate
type GateOptions struct {
	Sessions     *session.Manager
	Pipeline     Pipeline
	Users        UserLookup
	Blacklist    *regexp.Regexp
	BaseURL      string
	RelativePath string
	Logger       *slog.Logger
}

// SessionGate logs requests in from the shared session cookie. It never
// blocks a request: every failure falls through as anonymous.
type SessionGate struct {
	opts GateOptions
	log  *slog.Logger
}

// NewSessionGate creates the gate
func NewSessionGate(opts GateOptions) *SessionGate {
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}
	return &SessionGate{
		opts: opts,
		log:  base.With(slog.String("component", "session_gate")),
	}
}

// Handler wraps next with the gate
func (g *SessionGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid := g.opts.Sessions.GetUID(r); uid > 0 {
			if req, ok := g.withUser(r, uid); ok {
				next.ServeHTTP(w, req)
				return
			}
			// The account behind the session is gone; forget it and log in again
			if err := g.opts.Sessions.DropUID(r, w); err != nil {
				g.log.Error("failed to reset session", slog.Int64("uid", uid), slog.String("error", err.Error()))
			}
		}

		if g.opts.Blacklist != nil && g.opts.Blacklist.MatchString(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if !g.opts.Pipeline.Ready() {
			next.ServeHTTP(w, r)
			return
		}

		settings := g.opts.Pipeline.Settings()
		token := session.ReadToken(r, settings.CookieName)

		if token != "" {
			next.ServeHTTP(w, g.login(w, r, token, logger.WithNamespace(g.log, settings.Name)))
			return
		}

		if settings.GuestRedirect != "" && !urlutil.IsLocalLogin(g.opts.RelativePath, r.URL) {
			target := urlutil.GuestRedirectURL(settings.GuestRedirect, g.opts.BaseURL, r.URL.RequestURI())
			metrics.GuestRedirects.Inc()
			g.log.Debug("redirecting guest", slog.String("path", r.URL.Path), slog.String("target", target))
			http.Redirect(w, r, target, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// login runs the pipeline and returns the request to continue with
func (g *SessionGate) login(w http.ResponseWriter, r *http.Request, token string, log *slog.Logger) *http.Request {
	result, err := g.opts.Pipeline.Login(r.Context(), token)
	if err != nil {
		logFailure(log, r, err)
		return r
	}

	req, ok := g.withUser(r, result.UID)
	if !ok {
		return r
	}

	if err := g.opts.Sessions.SetUID(r, w, result.UID); err != nil {
		log.Error("failed to save session",
			slog.Int64("uid", result.UID),
			slog.String("error", err.Error()))
		return r
	}

	logger.WithUser(log, result.UID).Info("shared session login",
		slog.String("branch", result.Branch),
		slog.String("external_id", result.Identity.ExternalID))

	return req
}

func logFailure(log *slog.Logger, r *http.Request, err error) {
	log = log.With(slog.String("path", r.URL.Path), slog.String("outcome", services.Outcome(err)))
	switch {
	case errors.Is(err, auth.ErrInvalidPayload):
		log.Warn("payload invalid", slog.String("error", err.Error()))
	case services.IsStorageError(err), services.IsAccountCreationError(err):
		log.Error("shared session login failed", slog.String("error", err.Error()))
	default:
		log.Warn("shared session login failed", slog.String("error", err.Error()))
	}
}

// withUser attaches the account to the request context. It reports false
// only when the account does not exist; other lookup errors keep the bare uid.
func (g *SessionGate) withUser(r *http.Request, uid int64) (*http.Request, bool) {
	user := &auth.UserContext{UID: uid}
	if g.opts.Users != nil {
		account, err := g.opts.Users.GetUser(r.Context(), uid)
		switch {
		case err == nil:
			user.Username = account.Username
			user.Userslug = account.Userslug
			user.Picture = account.Picture
			user.Role = string(account.Role)
		case services.IsUserNotFound(err):
			g.log.Warn("session references missing account", slog.Int64("uid", uid))
			return r, false
		default:
			g.log.Error("failed to load session account", slog.Int64("uid", uid), slog.String("error", err.Error()))
		}
	}
	return r.WithContext(auth.SetUserInContext(r.Context(), user)), true
}
