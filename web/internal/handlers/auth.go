package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/devilmonastery/sessionshare/internal/auth"
	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/web/internal/session"
)

// Logout destroys the local session and, when cookieDomain is configured,
// clears the shared token cookie on that domain so the gate does not log
// the browser straight back in.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	uid := h.sessions.GetUID(r)

	if err := h.sessions.Clear(r, w); err != nil {
		h.log.Warn("failed to clear session", slog.String("error", err.Error()))
	}

	settings := h.settings.Settings()
	if settings.CookieDomain != "" {
		session.ClearTokenCookie(w, settings.CookieName, settings.CookieDomain)
	}

	if uid > 0 && h.audit != nil {
		entry := entities.NewAuditLog(&uid, entities.ActionUserLogout, entities.ResourceUser).
			WithResourceID(strconv.FormatInt(uid, 10))
		if err := h.audit.Create(r.Context(), entry); err != nil {
			h.log.Warn("failed to write audit log", slog.String("error", err.Error()))
		}
	}

	http.Redirect(w, r, h.homePath, http.StatusSeeOther)
}

// meResponse is the JSON shape of /api/me
type meResponse struct {
	UID      int64  `json:"uid"`
	Username string `json:"username"`
	Userslug string `json:"userslug"`
	Picture  string `json:"picture,omitempty"`
	Role     string `json:"role"`
	Admin    bool   `json:"admin"`
}

// Me returns the logged-in user. Wrap with middleware.RequireUser.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
		return
	}

	h.writeJSON(w, http.StatusOK, meResponse{
		UID:      user.UID,
		Username: user.Username,
		Userslug: user.Userslug,
		Picture:  user.Picture,
		Role:     user.Role,
		Admin:    user.IsAdmin(),
	})
}
