package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/maccas-one/sessionauth"
	"github.com/sirupsen/logrus"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// writeErrorMessage writes {"error": message}.
func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeEngineError maps an Engine error onto a status and a generic
// message. Wrapped detail never reaches the client.
func writeEngineError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	var (
		rl *sessionauth.RateLimitedError
		ve *sessionauth.ValidationError
	)
	switch {
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfterSeconds()))
		body := map[string]string{"error": sessionauth.ErrRateLimited.Error()}
		if rl.Validation != nil {
			body["validation"] = rl.Validation.Error()
		}
		_ = writeJSON(w, http.StatusTooManyRequests, body)
	case errors.As(err, &ve):
		writeErrorMessage(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, sessionauth.ErrInvalidCredentials):
		writeErrorMessage(w, http.StatusUnauthorized, sessionauth.ErrInvalidCredentials.Error())
	case errors.Is(err, sessionauth.ErrSessionNotFound),
		errors.Is(err, sessionauth.ErrSessionExpired),
		errors.Is(err, sessionauth.ErrUnauthenticated):
		writeErrorMessage(w, http.StatusUnauthorized, sessionauth.ErrUnauthenticated.Error())
	case errors.Is(err, sessionauth.ErrUsernameTaken):
		writeErrorMessage(w, http.StatusConflict, sessionauth.ErrUsernameTaken.Error())
	case errors.Is(err, sessionauth.ErrForbidden):
		writeErrorMessage(w, http.StatusForbidden, sessionauth.ErrForbidden.Error())
	case errors.Is(err, sessionauth.ErrUserNotFound):
		writeErrorMessage(w, http.StatusNotFound, sessionauth.ErrUserNotFound.Error())
	default:
		log.WithError(err).Error("request failed")
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}
