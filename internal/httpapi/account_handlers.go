package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"krona.org/internal/account"
	"krona.org/internal/audit"
	"krona.org/internal/identity"
	"krona.org/internal/obs"
)

type createAccountRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	ParentAccountID string `json:"parent_account_id"`
	Color           string `json:"color"`
	Icon            string `json:"icon"`
}

type updateAccountRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	Color           *string `json:"color"`
	Icon            *string `json:"icon"`
	Status          *string `json:"status"`
	ParentAccountID *string `json:"parent_account_id"`
}

type addMemberRequest struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

type updateMemberRoleRequest struct {
	Role string `json:"role"`
}

type sessionRequest struct {
	AccountID string `json:"account_id"`
}

type hierarchyResponse struct {
	CurrentAccountID string                   `json:"current_account_id,omitempty"`
	Accounts         []account.HierarchyEntry `json:"accounts"`
}

func (a *API) handleAccounts(w http.ResponseWriter, r *http.Request) {
	if a.accounts == nil {
		writeError(w, r, http.StatusServiceUnavailable, "account service unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listAccounts(w, r)
	case http.MethodPost:
		a.createAccount(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	sess := a.session(user.UID)

	// A first-seen user on an initialized store gets a personal workspace.
	if _, created, err := a.accounts.EnsurePersonalAccount(r.Context(), sess); err != nil {
		handleAccountError(w, r, err)
		return
	} else if created {
		_ = audit.LogEvent(r.Context(), "account.personal.provisioned", map[string]any{
			"account_id": sess.CurrentAccountID,
		})
	}

	writeJSON(w, http.StatusOK, hierarchyResponse{
		CurrentAccountID: sess.CurrentAccountID,
		Accounts:         a.accounts.VisibleHierarchy(r.Context()),
	})
}

func (a *API) createAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	created, err := a.accounts.CreateAccount(r.Context(), a.session(user.UID), account.CreateAccountInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentAccountID,
		Color:       req.Color,
		Icon:        req.Icon,
	})
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.create", map[string]any{
		"account_id": created.ID,
		"name":       created.Name,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/accounts/%s", created.ID))
	writeJSON(w, http.StatusCreated, created)
}

// handleHierarchy returns the visible hierarchy without the provisioning
// side effect of listAccounts. Read-only clients poll this endpoint.
func (a *API) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	if a.accounts == nil {
		writeError(w, r, http.StatusServiceUnavailable, "account service unavailable")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	sess := a.session(user.UID)
	writeJSON(w, http.StatusOK, hierarchyResponse{
		CurrentAccountID: sess.CurrentAccountID,
		Accounts:         a.accounts.VisibleHierarchy(r.Context()),
	})
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	if a.accounts == nil {
		writeError(w, r, http.StatusServiceUnavailable, "account service unavailable")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	accountID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleAccount(w, r, accountID)
	case len(parts) == 2 && parts[1] == "members":
		a.handleMembers(w, r, accountID)
	case len(parts) == 3 && parts[1] == "members":
		a.handleMember(w, r, accountID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	switch r.Method {
	case http.MethodGet:
		acc, err := a.accounts.AccountByID(r.Context(), accountID)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, acc)
	case http.MethodPatch:
		var req updateAccountRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		acc, err := a.accounts.UpdateAccount(r.Context(), accountID, account.Update{
			Name:        req.Name,
			Description: req.Description,
			Color:       req.Color,
			Icon:        req.Icon,
			Status:      req.Status,
			ParentID:    req.ParentAccountID,
		})
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "account.update", map[string]any{
			"account_id": acc.ID,
		})
		writeJSON(w, http.StatusOK, acc)
	case http.MethodDelete:
		user, ok := identity.FromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		sess := a.session(user.UID)
		if err := a.accounts.DeleteAccount(r.Context(), sess, accountID); err != nil {
			handleAccountError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "account.delete", map[string]any{
			"account_id":         accountID,
			"current_account_id": sess.CurrentAccountID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request, accountID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req addMemberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := account.ParseRole(req.Role)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	acc, err := a.accounts.AddMember(r.Context(), accountID, req.UID, req.DisplayName, role)
	if err != nil {
		handleAccountError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "account.member.add", map[string]any{
		"account_id": accountID,
		"member_uid": req.UID,
		"role":       role.String(),
	})
	writeJSON(w, http.StatusCreated, acc)
}

func (a *API) handleMember(w http.ResponseWriter, r *http.Request, accountID, uid string) {
	switch r.Method {
	case http.MethodPatch:
		var req updateMemberRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := account.ParseRole(req.Role)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		acc, err := a.accounts.UpdateMemberRole(r.Context(), accountID, uid, role)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "account.member.role_change", map[string]any{
			"account_id": accountID,
			"member_uid": uid,
			"role":       role.String(),
		})
		writeJSON(w, http.StatusOK, acc)
	case http.MethodDelete:
		acc, err := a.accounts.RemoveMember(r.Context(), accountID, uid)
		if err != nil {
			handleAccountError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "account.member.remove", map[string]any{
			"account_id": accountID,
			"member_uid": uid,
		})
		writeJSON(w, http.StatusOK, acc)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleSessionAccount(w http.ResponseWriter, r *http.Request) {
	if a.accounts == nil {
		writeError(w, r, http.StatusServiceUnavailable, "account service unavailable")
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	user, ok := identity.FromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	sess := a.session(user.UID)
	if err := a.accounts.SetCurrentAccount(r.Context(), sess, strings.TrimSpace(req.AccountID)); err != nil {
		handleAccountError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current_account_id": sess.CurrentAccountID,
	})
}

func handleAccountError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, account.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, account.ErrUnauthorized):
		obs.CountAuthzDenial("manage")
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, account.ErrOwnerGrantRestricted),
		errors.Is(err, account.ErrOwnerRemovalRestricted),
		errors.Is(err, account.ErrOwnerRoleChangeRestricted):
		obs.CountAuthzDenial("owner")
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, account.ErrNotFound), errors.Is(err, account.ErrMemberNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, account.ErrAlreadyMember),
		errors.Is(err, account.ErrLastOwner),
		errors.Is(err, account.ErrHasChildren),
		errors.Is(err, account.ErrReservedAccount):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrStore):
		writeError(w, r, http.StatusBadGateway, "store operation failed")
	default:
		writeError(w, r, http.StatusInternalServerError, "account operation failed")
	}
}
