package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/gridweaver/internal/gateway"
	"github.com/starfederation/datastar-go/datastar"
)

// changeSignals is the signal patch pushed to grid hosts.
type changeSignals struct {
	Definition gateway.Change `json:"definition"`
}

// changeReady is sent once when the stream opens.
const changeReady gateway.ChangeKind = "ready"

// definitionEvents is the long-lived SSE endpoint for one definition. It
// passes through the read guard, then pushes a signal patch whenever the
// definition changes. The stream ends after a delete.
func (h *handlers) definitionEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Subscribe first so a change racing the read is still delivered.
	changes := h.gateway.Changes().Subscribe()
	defer h.gateway.Changes().Unsubscribe(changes)

	if _, err := h.gateway.Read(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.MarshalAndPatchSignals(changeSignals{Definition: gateway.Change{ID: id, Kind: changeReady}}); err != nil {
		h.logger.Debug("event stream closed", "id", id, "error", err)
		return
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if c.ID != id {
				continue
			}
			if err := sse.MarshalAndPatchSignals(changeSignals{Definition: c}); err != nil {
				h.logger.Debug("event stream closed", "id", id, "error", err)
				return
			}
			if c.Kind == gateway.ChangeDeleted {
				return
			}
		}
	}
}
