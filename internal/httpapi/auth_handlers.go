package httpapi

import (
	"net/http"
	"strings"
	"time"

	"krona.org/internal/audit"
	"krona.org/internal/identity"
)

type tokenRequest struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	SystemAdmin bool   `json:"system_admin"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	uid := strings.TrimSpace(req.UID)
	if uid == "" {
		writeError(w, r, http.StatusBadRequest, "uid is required")
		return
	}
	user := identity.Identity{
		UID:         uid,
		DisplayName: strings.TrimSpace(req.DisplayName),
		SystemAdmin: req.SystemAdmin,
	}

	token, err := identity.GenerateToken(user, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	fields := map[string]any{
		"uid":          uid,
		"system_admin": req.SystemAdmin,
		"expires_at":   expiresAt.Format(time.RFC3339),
	}
	_ = audit.LogEvent(r.Context(), "auth.token.issued", fields)

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
