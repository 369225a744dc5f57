package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gatehouselabs/gatehouse/internal/account"
	"github.com/gatehouselabs/gatehouse/internal/passkey"
	apperrors "github.com/gatehouselabs/gatehouse/internal/platform/errors"
	"github.com/gatehouselabs/gatehouse/internal/platform/errors/i18n"
	"github.com/gatehouselabs/gatehouse/internal/servicegrant"
	"github.com/gatehouselabs/gatehouse/internal/session"
	"github.com/gatehouselabs/gatehouse/internal/storage"
)

const tracerName = "github.com/gatehouselabs/gatehouse/internal/httpapi"

// SessionIssuer mints bearer tokens after a successful password login.
type SessionIssuer interface {
	Issue(ctx context.Context, accountID string) (session.Token, error)
}

// Handler serves the authentication JSON API.
type Handler struct {
	accounts    *account.Service
	engine      *passkey.Engine
	sessions    SessionIssuer
	credentials storage.CredentialStore
	grants      *servicegrant.Config
	tracer      trace.Tracer
}

// New builds a handler. A nil grants config disables the admin surface.
func New(accounts *account.Service, engine *passkey.Engine, sessions SessionIssuer, credentials storage.CredentialStore, grants *servicegrant.Config) *Handler {
	return &Handler{
		accounts:    accounts,
		engine:      engine,
		sessions:    sessions,
		credentials: credentials,
		grants:      grants,
		tracer:      otel.Tracer(tracerName),
	}
}

// Register attaches all routes to mux. Admin routes are registered only
// when grant verification is configured.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("POST /v1/auth/check", h.handleCheckUser)
	mux.HandleFunc("POST /v1/auth/register", h.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", h.handleLogin)
	mux.HandleFunc("POST /v1/passkeys/register/begin", h.handleBeginRegistration)
	mux.HandleFunc("POST /v1/passkeys/register/finish", h.handleFinishRegistration)
	mux.HandleFunc("POST /v1/passkeys/login/begin", h.handleBeginLogin)
	mux.HandleFunc("POST /v1/passkeys/login/finish", h.handleFinishLogin)
	if h.grants != nil {
		mux.HandleFunc("GET /v1/admin/accounts/{id}/credentials", h.requireGrant(h.handleListCredentials))
		mux.HandleFunc("DELETE /v1/admin/accounts/{id}/credentials/{credentialID}", h.requireGrant(h.handleDeleteCredential))
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireGrant rejects admin calls without a valid service grant carrying
// the credentials:manage scope.
func (h *Handler) requireGrant(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grant := bearerToken(r)
		if _, err := servicegrant.Validate(grant, servicegrant.ScopeCredentialsManage, *h.grants); err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// startSpan opens a span for one API operation and records the outcome code
// when the operation fails.
func (h *Handler) startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	return h.tracer.Start(r.Context(), name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("gatehouse.error_code", string(apperrors.GetCode(err))))
		span.RecordError(err)
	}
	span.End()
}

func decodeRequest(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return apperrors.Wrap(apperrors.CodeClientDataInvalid, "request body is not valid JSON", err)
	}
	return nil
}

func decodeBytes(value string) ([]byte, error) {
	if value == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.DecodeString(value)
}

func encodeBytes(value []byte) string {
	return base64.RawURLEncoding.EncodeToString(value)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// writeError maps a domain error to its HTTP status. The human-readable
// message is localized from the Accept-Language header. Errors without a
// domain code are logged and masked as an internal failure.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	if code == apperrors.CodeUnknown {
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{
			Error: errorBody{Code: string(apperrors.CodeUnknown), Message: "internal error"},
		})
		return
	}
	writeJSON(w, code.HTTPStatus(), errorEnvelope{
		Error: errorBody{Code: string(code), Message: localizedMessage(r, code, err)},
	})
}

// localizedMessage renders the catalog message for the error code, falling
// back to the raw error text when no catalog entry exists.
func localizedMessage(r *http.Request, code apperrors.Code, err error) string {
	header := ""
	if r != nil {
		header = r.Header.Get("Accept-Language")
	}
	message := i18n.MatchAcceptLanguage(header).Format(string(code), apperrors.GetMetadata(err))
	if message == string(code) {
		return err.Error()
	}
	return message
}

var _ SessionIssuer = (*session.Issuer)(nil)
