package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/gridweaver/internal/gateway"
	"github.com/leapstack-labs/gridweaver/pkg/core"
	"github.com/leapstack-labs/gridweaver/pkg/query"
)

type handlers struct {
	gateway      *gateway.Gateway
	secretHeader string
	logger       *slog.Logger
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields []core.FieldError `json:"fields,omitempty"`
}

// createdResponse is returned by POST /api/definitions.
type createdResponse struct {
	ID string `json:"id"`
}

// translateResponse is returned by POST /api/translate.
type translateResponse struct {
	Query  core.NormalizedQuery `json:"query"`
	Params string               `json:"params"`
	URL    string               `json:"url,omitempty"`
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (h *handlers) createDefinition(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.gateway.Create(r.Context(), r.Header.Get(h.secretHeader), body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/definitions/"+id)
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (h *handlers) readDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := h.gateway.Read(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *handlers) updateDefinition(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.gateway.Update(r.Context(), r.Header.Get(h.secretHeader), chi.URLParam(r, "id"), body); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) deleteDefinition(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.Delete(r.Context(), r.Header.Get(h.secretHeader), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// translate converts a native page request. With ?definition=<id> the
// definition's fetch params are merged into the encoded parameters.
func (h *handlers) translate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	raw := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &raw); err != nil {
			h.writeError(w, r, badRequest("malformed JSON: %v", err))
			return
		}
	}
	req, err := query.DecodeNativeRequest(raw)
	if err != nil {
		h.writeError(w, r, badRequest("%v", err))
		return
	}

	var resp translateResponse
	var static map[string]any
	if id := r.URL.Query().Get("definition"); id != "" {
		def, err := h.gateway.Read(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		static = def.HTTP.Params
		resp.URL = def.HTTP.URL
	}

	resp.Query = query.Translate(req)
	values, err := query.Encode(resp.Query, static)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp.Params = values.Encode()
	writeJSON(w, http.StatusOK, resp)
}

// requestError is a malformed request that never reached the gateway.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, badRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, badRequest("failed to read request body: %v", err)
	}
	return body, nil
}

// statusOf maps the error taxonomy onto HTTP status codes.
func statusOf(err error) int {
	var (
		verr   *core.ValidationError
		reqErr *requestError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	resp := errorResponse{Error: err.Error()}

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
