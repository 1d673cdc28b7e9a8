package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"paperchat/internal/util"
)

var (
	errTooLarge    = errors.New("request body too large")
	errUnavailable = errors.New("feature unavailable")
)

// userError carries a message that is safe to return verbatim.
type userError struct {
	kind error
	msg  string
}

func (e *userError) Error() string { return e.msg }
func (e *userError) Unwrap() error { return e.kind }

func invalid(msg string) error { return &userError{kind: util.ErrValidation, msg: msg} }

func notFound(msg string) error { return &userError{kind: util.ErrNotFound, msg: msg} }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, logger *slog.Logger, err error) {
	apiErr := toAPIError(err)
	if apiErr.Status >= 500 && logger != nil {
		logger.Error("request failed", "code", apiErr.Code, "error", err)
	}
	writeJSON(w, apiErr.Status, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Status  int
	Code    string
	Message string
}

func toAPIError(err error) apiError {
	var out apiError
	switch {
	case errors.Is(err, util.ErrValidation):
		out = apiError{http.StatusBadRequest, "PC-API-4001", "Invalid request. Check inputs and retry."}
	case errors.Is(err, util.ErrNotFound):
		out = apiError{http.StatusNotFound, "PC-API-4004", "Requested resource was not found."}
	case errors.Is(err, util.ErrDuplicate):
		out = apiError{http.StatusConflict, "PC-API-4009", "This file has already been uploaded."}
	case errors.Is(err, util.ErrNotReady):
		out = apiError{http.StatusConflict, "PC-API-4010", "The document is still being processed. Try again shortly."}
	case errors.Is(err, errTooLarge):
		out = apiError{http.StatusRequestEntityTooLarge, "PC-API-4013", "The file exceeds the maximum upload size."}
	case errors.Is(err, util.ErrEmbedding), errors.Is(err, util.ErrGeneration):
		return apiError{http.StatusBadGateway, "PC-API-5020", util.UserMessage(err)}
	case errors.Is(err, errUnavailable):
		return apiError{http.StatusServiceUnavailable, "PC-API-5030", "This operation is not available in the current deployment."}
	default:
		return internalError(err)
	}

	var ue *userError
	if errors.As(err, &ue) {
		out.Message = ue.msg
	}
	return out
}

func internalError(err error) apiError {
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}
	switch {
	case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
		return apiError{http.StatusInternalServerError, "PC-DB-5001", "Database schema is not initialized. Run migrations and retry."}
	case strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
		return apiError{http.StatusInternalServerError, "PC-DB-5002", "Database connection is unavailable. Check local services and retry."}
	default:
		return apiError{http.StatusInternalServerError, "PC-API-5000", "Internal server error. Please retry or check service logs."}
	}
}

func withCORS(origins []string, next http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+ownerHeader)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
