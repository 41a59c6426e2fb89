package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"neurocare.org/internal/audit"
	"neurocare.org/internal/auth"
	"neurocare.org/internal/obs"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// forgotPasswordReply is returned for every forgot-password request so the
// response never reveals whether the account exists.
const forgotPasswordReply = "OTP sent to email if account exists"

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	if req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "password is required")
		return
	}

	user, err := a.svc.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	if req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "password is required")
		return
	}

	token, expiresAt, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		obs.LoginsTotal.WithLabelValues("failure").Inc()
		_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{
			"email": strings.TrimSpace(req.Email),
		})
		a.handleAuthError(w, r, err)
		return
	}

	obs.LoginsTotal.WithLabelValues("success").Inc()
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"email":      strings.TrimSpace(req.Email),
		"expires_at": expiresAt.Format(time.RFC3339),
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.svc.Logout(r.Context(), token); err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	obs.TokensRevokedTotal.Inc()
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "logged out successfully",
	})
}

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	// Malformed bearer material is a caller mistake, not an authentication
	// verdict: only a verified-then-rejected token earns a 401.
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.svc.CurrentUser(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenRevoked) {
			_ = audit.LogEvent(r.Context(), "auth.token.rejected", map[string]any{
				"reason": "revoked",
			})
		}
		a.handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	obs.ForgotPasswordTotal.Inc()

	if err := a.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		if !errors.Is(err, auth.ErrMailDelivery) {
			a.handleAuthError(w, r, err)
			return
		}
		// Delivery trouble stays server-side; the requester gets the
		// same reply either way.
		_ = audit.LogEvent(r.Context(), "auth.password.forgot.mail_failed", map[string]any{
			"error": err.Error(),
		})
	}

	_ = audit.LogEvent(r.Context(), "auth.password.forgot", map[string]any{
		"email": strings.TrimSpace(req.Email),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": forgotPasswordReply,
	})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	if strings.TrimSpace(req.OTP) == "" {
		writeError(w, r, http.StatusBadRequest, "otp is required")
		return
	}
	if req.NewPassword == "" {
		writeError(w, r, http.StatusBadRequest, "new_password is required")
		return
	}

	if err := a.svc.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrNoChallenge):
			obs.OTPValidationsTotal.WithLabelValues("no_challenge").Inc()
		case errors.Is(err, auth.ErrCodeExpired):
			obs.OTPValidationsTotal.WithLabelValues("expired").Inc()
		case errors.Is(err, auth.ErrCodeMismatch):
			obs.OTPValidationsTotal.WithLabelValues("mismatch").Inc()
		}
		a.handleAuthError(w, r, err)
		return
	}

	obs.OTPValidationsTotal.WithLabelValues("success").Inc()
	_ = audit.LogEvent(r.Context(), "auth.password.reset", map[string]any{
		"email": strings.TrimSpace(req.Email),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password reset successfully",
	})
}

func (a *API) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, r, http.StatusBadRequest, "email already registered")
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenRevoked):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, auth.ErrNoChallenge):
		writeError(w, r, http.StatusBadRequest, "no reset code requested")
	case errors.Is(err, auth.ErrCodeExpired):
		writeError(w, r, http.StatusBadRequest, "reset code expired")
	case errors.Is(err, auth.ErrCodeMismatch):
		writeError(w, r, http.StatusBadRequest, "invalid reset code")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
