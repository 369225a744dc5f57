package loginflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
)

const defaultClientTimeout = 30 * time.Second

// Client implements Server over the backend's JSON API. Transport failures
// surface as CannotConnect; expected failures carry the code the server
// returned.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the API at baseURL. A nil httpClient gets a
// default with a request timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

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

type beginRegistrationRequest struct {
	Email string `json:"email"`
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

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CheckUser reports the credential capabilities behind an email.
func (c *Client) CheckUser(ctx context.Context, email string) (Capabilities, error) {
	var resp checkUserResponse
	if err := c.post(ctx, "/v1/auth/check", checkUserRequest{Email: email}, &resp); err != nil {
		return Capabilities{}, err
	}
	return Capabilities{
		Exists:      resp.Exists,
		HasPassword: resp.HasPassword,
		HasPasskey:  resp.HasPasskey,
	}, nil
}

// RegisterAccount creates a password-backed account.
func (c *Client) RegisterAccount(ctx context.Context, email, password string) (string, error) {
	var resp registerResponse
	if err := c.post(ctx, "/v1/auth/register", passwordRequest{Email: email, Password: password}, &resp); err != nil {
		return "", err
	}
	return resp.AccountID, nil
}

// Login signs in with an email and password.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var resp sessionResponse
	if err := c.post(ctx, "/v1/auth/login", passwordRequest{Email: email, Password: password}, &resp); err != nil {
		return Session{}, err
	}
	return toSession(resp), nil
}

// BeginPasskeyRegistration fetches creation options for a new passkey.
func (c *Client) BeginPasskeyRegistration(ctx context.Context, email string) (RegistrationOptions, error) {
	var resp registrationOptionsResponse
	if err := c.post(ctx, "/v1/passkeys/register/begin", beginRegistrationRequest{Email: email}, &resp); err != nil {
		return RegistrationOptions{}, err
	}
	return RegistrationOptions{
		Challenge:            resp.Challenge,
		RPID:                 resp.RPID,
		RPDisplayName:        resp.RPDisplayName,
		Algorithms:           resp.Algorithms,
		ExcludeCredentialIDs: resp.ExcludeCredentialIDs,
	}, nil
}

// FinishPasskeyRegistration submits the browser's creation result.
func (c *Client) FinishPasskeyRegistration(ctx context.Context, in FinishRegistration) (Session, error) {
	var resp sessionResponse
	req := finishRegistrationRequest{
		AccountID:         in.AccountID,
		Email:             in.Email,
		CredentialID:      in.Creation.CredentialID,
		AttestationObject: encodeBytes(in.Creation.AttestationObject),
		ClientDataJSON:    encodeBytes(in.Creation.ClientDataJSON),
		Label:             in.Creation.Label,
	}
	if err := c.post(ctx, "/v1/passkeys/register/finish", req, &resp); err != nil {
		return Session{}, err
	}
	return toSession(resp), nil
}

// BeginPasskeyLogin fetches assertion options for an existing account.
func (c *Client) BeginPasskeyLogin(ctx context.Context, email string) (LoginOptions, error) {
	var resp loginOptionsResponse
	if err := c.post(ctx, "/v1/passkeys/login/begin", beginLoginRequest{Email: email}, &resp); err != nil {
		return LoginOptions{}, err
	}
	return LoginOptions{
		Challenge:          resp.Challenge,
		RPID:               resp.RPID,
		AllowCredentialIDs: resp.AllowCredentialIDs,
	}, nil
}

// FinishPasskeyLogin submits the browser's assertion result.
func (c *Client) FinishPasskeyLogin(ctx context.Context, in AssertionResult) (Session, error) {
	var resp sessionResponse
	req := finishLoginRequest{
		CredentialID:      in.CredentialID,
		AuthenticatorData: encodeBytes(in.AuthenticatorData),
		ClientDataJSON:    encodeBytes(in.ClientDataJSON),
		Signature:         encodeBytes(in.Signature),
		UserHandle:        in.UserHandle,
	}
	if err := c.post(ctx, "/v1/passkeys/login/finish", req, &resp); err != nil {
		return Session{}, err
	}
	return toSession(resp), nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCannotConnect, "cannot reach authentication server", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCannotConnect, "read server response", err)
	}
	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
			return apperrors.New(apperrors.Code(envelope.Error.Code), envelope.Error.Message)
		}
		return apperrors.New(apperrors.CodeCannotConnect, fmt.Sprintf("server returned status %d", resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrap(apperrors.CodeCannotConnect, "decode server response", err)
	}
	return nil
}

func toSession(resp sessionResponse) Session {
	return Session{
		Token:     resp.Token,
		AccountID: resp.AccountID,
		Email:     resp.Email,
		ExpiresAt: resp.ExpiresAt,
	}
}

func encodeBytes(value []byte) string {
	return base64.RawURLEncoding.EncodeToString(value)
}
