package handlers

import (
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/circlesocial/backend/internal/auth"
	"github.com/circlesocial/backend/internal/logging"
	"github.com/circlesocial/backend/internal/models"
)

// AuthHandler implements the registration and login endpoints.
type AuthHandler struct {
	Auth      Authenticator
	Directory Directory
	Pictures  PictureStore
	Limiter   RateLimiter
	MaxUpload int64

	// TrustedProxies may set X-Forwarded-For for the rate limit key.
	TrustedProxies []netip.Prefix
}

// Register handles POST /api/v1/auth/register.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if rateLimited(w, r, h.Limiter, "register", h.TrustedProxies) {
		logger.Warn("register rate limited", "ip", clientIP(r, h.TrustedProxies))
		return
	}
	if h.Auth == nil {
		logger.Error("authentication service unavailable")
		respondMessage(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	f, err := parseForm(w, r, h.MaxUpload)
	if err != nil {
		writeError(ctx, w, err, "")
		return
	}
	defer f.cleanup()

	// Validate credentials before any bytes reach storage.
	if strings.TrimSpace(f.get("username")) == "" || f.get("password") == "" {
		respondMessage(ctx, w, http.StatusBadRequest, "username and password are required")
		return
	}

	picturePath, err := savePicture(ctx, h.Pictures, f)
	if err != nil {
		writeError(ctx, w, err, "picture")
		return
	}

	user, err := h.Auth.Register(ctx, auth.RegisterInput{
		Username:    f.get("username"),
		Email:       f.get("email"),
		Password:    f.get("password"),
		FirstName:   f.get("firstName"),
		LastName:    f.get("lastName"),
		Location:    f.get("location"),
		Occupation:  f.get("occupation"),
		PicturePath: picturePath,
	})
	if err != nil {
		discardPicture(ctx, h.Pictures, picturePath)
		writeError(ctx, w, err, "account")
		return
	}

	if h.Directory != nil {
		h.Directory.Invalidate(ctx)
	}
	respondJSON(ctx, w, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if rateLimited(w, r, h.Limiter, "login", h.TrustedProxies) {
		logger.Warn("login rate limited", "ip", clientIP(r, h.TrustedProxies))
		return
	}
	if h.Auth == nil {
		logger.Error("authentication service unavailable")
		respondMessage(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, err, "")
		return
	}

	user, token, err := h.Auth.Login(ctx, req.identifier(), req.Password)
	if err != nil {
		writeError(ctx, w, err, "")
		return
	}

	respondJSON(ctx, w, http.StatusOK, loginResponse{User: user, Token: token.Value, ExpiresAt: token.ExpiresAt})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (r loginRequest) identifier() string {
	for _, candidate := range []string{r.Identifier, r.Username, r.Email} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

type loginResponse struct {
	User      models.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}
