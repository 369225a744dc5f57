package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/account"
	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
	"github.com/gatehouselabs/gatehouse/internal/storage"
)

// ErrLastMethod refuses to remove an account's only remaining way to sign
// in.
var ErrLastMethod = apperrors.New(apperrors.CodeInvalidAccountState, "cannot delete the account's last authentication method")

type credentialResponse struct {
	CredentialID string     `json:"credential_id"`
	Label        string     `json:"label,omitempty"`
	AAGUID       string     `json:"aaguid,omitempty"`
	SignCount    uint32     `json:"sign_count"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

type credentialListResponse struct {
	Credentials []credentialResponse `json:"credentials"`
}

func (h *Handler) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "admin.list_credentials")
	var err error
	defer func() { endSpan(span, err) }()

	accountID := r.PathValue("id")
	if _, err = h.accounts.Get(ctx, accountID); err != nil {
		writeError(w, r, err)
		return
	}
	var listed []storage.Credential
	listed, err = h.credentials.ListCredentials(ctx, accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := credentialListResponse{Credentials: make([]credentialResponse, 0, len(listed))}
	for _, credential := range listed {
		resp.Credentials = append(resp.Credentials, credentialResponse{
			CredentialID: credential.CredentialID,
			Label:        credential.Label,
			AAGUID:       encodeBytes(credential.AAGUID),
			SignCount:    credential.SignCount,
			CreatedAt:    credential.CreatedAt,
			LastUsedAt:   credential.LastUsedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "admin.delete_credential")
	var err error
	defer func() { endSpan(span, err) }()

	accountID := r.PathValue("id")
	credentialID := r.PathValue("credentialID")

	var owner account.Account
	owner, err = h.accounts.Get(ctx, accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var credential storage.Credential
	credential, err = h.credentials.GetCredential(ctx, credentialID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = apperrors.New(apperrors.CodeCredentialNotFound, "credential not found")
		}
		writeError(w, r, err)
		return
	}
	if credential.AccountID != accountID {
		err = apperrors.New(apperrors.CodeCredentialNotFound, "credential not found")
		writeError(w, r, err)
		return
	}

	if !owner.HasPassword {
		var count int64
		count, err = h.credentials.CountCredentials(ctx, accountID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if count <= 1 {
			err = ErrLastMethod
			writeError(w, r, err)
			return
		}
	}

	if err = h.credentials.DeleteCredential(ctx, credentialID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
