package httpapi

import (
	"net/http"

	"github.com/gatehouselabs/gatehouse/internal/passkey"
)

type beginRegistrationRequest struct {
	AccountID string `json:"account_id,omitempty"`
	Email     string `json:"email,omitempty"`
}

type registrationOptionsResponse struct {
	Challenge            string   `json:"challenge"`
	RPID                 string   `json:"rp_id"`
	RPDisplayName        string   `json:"rp_display_name"`
	Algorithms           []int64  `json:"algorithms"`
	ExcludeCredentialIDs []string `json:"exclude_credential_ids"`
}

type finishRegistrationRequest struct {
	AccountID         string `json:"account_id,omitempty"`
	Email             string `json:"email,omitempty"`
	CredentialID      string `json:"credential_id"`
	AttestationObject string `json:"attestation_object"`
	ClientDataJSON    string `json:"client_data_json"`
	Label             string `json:"label,omitempty"`
}

type beginLoginRequest struct {
	Email string `json:"email"`
}

type loginOptionsResponse struct {
	Challenge          string   `json:"challenge"`
	RPID               string   `json:"rp_id"`
	AllowCredentialIDs []string `json:"allow_credential_ids"`
}

type finishLoginRequest struct {
	CredentialID      string `json:"credential_id"`
	AuthenticatorData string `json:"authenticator_data"`
	ClientDataJSON    string `json:"client_data_json"`
	Signature         string `json:"signature"`
	UserHandle        string `json:"user_handle,omitempty"`
}

func (h *Handler) handleBeginRegistration(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "passkeys.begin_registration")
	var err error
	defer func() { endSpan(span, err) }()

	var req beginRegistrationRequest
	if err = decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var opts passkey.RegistrationOptions
	opts, err = h.engine.BeginRegistration(ctx, passkey.BeginRegistrationInput{
		AccountID: req.AccountID,
		Email:     req.Email,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, registrationOptionsResponse{
		Challenge:            opts.Challenge,
		RPID:                 opts.RPID,
		RPDisplayName:        opts.RPDisplayName,
		Algorithms:           opts.Algorithms,
		ExcludeCredentialIDs: opts.ExcludeCredentialIDs,
	})
}

func (h *Handler) handleFinishRegistration(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "passkeys.finish_registration")
	var err error
	defer func() { endSpan(span, err) }()

	var req finishRegistrationRequest
	if err = decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	attestation, decodeErr := decodeBytes(req.AttestationObject)
	if decodeErr != nil {
		err = passkey.ErrMissingCeremonyPayload
		writeError(w, r, err)
		return
	}
	clientData, decodeErr := decodeBytes(req.ClientDataJSON)
	if decodeErr != nil {
		err = passkey.ErrMissingCeremonyPayload
		writeError(w, r, err)
		return
	}

	var result passkey.Result
	result, err = h.engine.FinishRegistration(ctx, passkey.FinishRegistrationInput{
		AccountID:         req.AccountID,
		Email:             req.Email,
		AttestationObject: attestation,
		ClientDataJSON:    clientData,
		Label:             req.Label,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		AccountID: result.AccountID,
		Email:     result.Email,
		Token:     result.Token.Value,
		ExpiresAt: result.Token.ExpiresAt,
	})
}

func (h *Handler) handleBeginLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "passkeys.begin_login")
	var err error
	defer func() { endSpan(span, err) }()

	var req beginLoginRequest
	if err = decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var opts passkey.LoginOptions
	opts, err = h.engine.BeginLogin(ctx, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginOptionsResponse{
		Challenge:          opts.Challenge,
		RPID:               opts.RPID,
		AllowCredentialIDs: opts.AllowCredentialIDs,
	})
}

func (h *Handler) handleFinishLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.startSpan(r, "passkeys.finish_login")
	var err error
	defer func() { endSpan(span, err) }()

	var req finishLoginRequest
	if err = decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	authData, decodeErr := decodeBytes(req.AuthenticatorData)
	if decodeErr != nil {
		err = passkey.ErrMissingCeremonyPayload
		writeError(w, r, err)
		return
	}
	clientData, decodeErr := decodeBytes(req.ClientDataJSON)
	if decodeErr != nil {
		err = passkey.ErrMissingCeremonyPayload
		writeError(w, r, err)
		return
	}
	signature, decodeErr := decodeBytes(req.Signature)
	if decodeErr != nil {
		err = passkey.ErrMissingCeremonyPayload
		writeError(w, r, err)
		return
	}

	var result passkey.Result
	result, err = h.engine.FinishLogin(ctx, passkey.FinishLoginInput{
		CredentialID:      req.CredentialID,
		AuthenticatorData: authData,
		ClientDataJSON:    clientData,
		Signature:         signature,
		UserHandle:        req.UserHandle,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		AccountID: result.AccountID,
		Email:     result.Email,
		Token:     result.Token.Value,
		ExpiresAt: result.Token.ExpiresAt,
	})
}
