package httpapi

import (
	"net/http"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/account"
)

type checkUserRequest struct {
	Email string `json:"email"`
}

type checkUserResponse struct {
	Exists      bool `json:"exists"`
	HasPassword bool `json:"has_password"`
	HasPasskey  bool `json:"has_passkey"`
}

type passwordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

type sessionResponse struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleCheckUser(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "auth.check_user")
	var err error
	defer func() { endSpan(span, err) }()

	var req checkUserRequest
	if err = decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var caps account.Capabilities
	caps, err = h.accounts.CheckUser(ctx, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, checkUserResponse{
		Exists:      caps.Exists,
		HasPassword: caps.HasPassword,
		HasPasskey:  caps.HasPasskey,
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "auth.register")
	var err error
	defer func() { endSpan(span, err) }()

	var req passwordRequest
	if err = decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var created account.Account
	created, err = h.accounts.Register(ctx, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{
		AccountID: created.ID,
		Email:     created.Email,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "auth.login")
	var err error
	defer func() { endSpan(span, err) }()

	var req passwordRequest
	if err = decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var found account.Account
	found, err = h.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	token, issueErr := h.sessions.Issue(ctx, found.ID)
	if issueErr != nil {
		err = issueErr
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		AccountID: found.ID,
		Email:     found.Email,
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	})
}
