package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/circlesocial/backend/internal/auth"
	"github.com/circlesocial/backend/internal/logging"
	"github.com/circlesocial/backend/internal/models"
	"github.com/circlesocial/backend/internal/repositories"
)

const maxJSONBody = 1 << 20

type messageResponse struct {
	Message string `json:"message"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondMessage(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, messageResponse{Message: message})
}

// writeError maps a service error onto a status code and a client-safe
// message. subject names the resource in not-found and conflict messages.
func writeError(ctx context.Context, w http.ResponseWriter, err error, subject string) {
	var validation *models.ValidationError
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &validation):
		respondMessage(ctx, w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &tooLarge):
		respondMessage(ctx, w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondMessage(ctx, w, http.StatusUnauthorized, "invalid credentials")
	case auth.IsUnauthorized(err):
		respondMessage(ctx, w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, auth.ErrForbidden):
		respondMessage(ctx, w, http.StatusForbidden, "forbidden")
	case errors.Is(err, repositories.ErrNotFound):
		respondMessage(ctx, w, http.StatusNotFound, fmt.Sprintf("%s not found", subject))
	case errors.Is(err, repositories.ErrConflict):
		respondMessage(ctx, w, http.StatusConflict, fmt.Sprintf("%s already exists", subject))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondMessage(ctx, w, http.StatusServiceUnavailable, "request timed out")
	default:
		logging.FromContext(ctx).Error("unhandled error", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return models.Invalid("", "invalid request body")
	}
	return nil
}

// principal returns the authenticated caller or writes a 401.
func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondMessage(r.Context(), w, http.StatusUnauthorized, "missing token")
		return auth.Principal{}, false
	}
	return p, true
}

// requireSelf writes a 403 unless the caller is the user named by id.
func requireSelf(w http.ResponseWriter, r *http.Request, id string) (auth.Principal, bool) {
	p, ok := principal(w, r)
	if !ok {
		return p, false
	}
	if p.UserID != id {
		writeError(r.Context(), w, auth.ErrForbidden, "")
		return p, false
	}
	return p, true
}
