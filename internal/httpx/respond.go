package httpx

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ariefcatur/go-barter-market/internal/apperr"
)

// Codes for failures that happen before a request reaches a service.
const (
	codeUnauthenticated = "UNAUTHENTICATED"
	codeBadRequest      = "BAD_REQUEST"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: codeBadRequest, Message: msg})
}

// writeError maps a service error to its status and the error body.
// Internal failures are logged and answered without their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	e, ok := apperr.As(err)
	if !ok || e.Code == apperr.CodeInternal {
		log.Printf("http: %s %s: %v", r.Method, r.URL.Path, err)
		writeJSON(w, status, errorBody{Error: string(apperr.CodeInternal), Message: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: string(e.Code), Message: e.Message})
}

func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := CallerID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: codeUnauthenticated, Message: "missing caller identity"})
	}
	return id, ok
}
