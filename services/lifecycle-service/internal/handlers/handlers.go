package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"agrilink-system/services/lifecycle-service/internal/domain"
	"agrilink-system/services/lifecycle-service/internal/lifecycle"
	"agrilink-system/services/lifecycle-service/internal/middleware"
)

// EventPublisher is the outbound feed for notifications and change
// events. Fire-and-forget: delivery is the transport's problem.
type EventPublisher interface {
	Publish(topic string, message any)
}

// Topics names the outbound event streams.
type Topics struct {
	Notifications string
	Changes       string
}

// LifecycleHandler exposes the engine over HTTP. It owns the mapping
// from domain errors to status codes and the dispatch of emitted
// events; the engine itself stays transport-free.
type LifecycleHandler struct {
	Engine *lifecycle.Engine
	Events EventPublisher
	Topics Topics
}

// dispatch fans the events returned by a transition out to the feed.
func (h *LifecycleHandler) dispatch(res *lifecycle.Result) {
	if h.Events == nil {
		return
	}
	for _, n := range res.Notifications {
		h.Events.Publish(h.Topics.Notifications, n)
	}
	for _, c := range res.Changes {
		h.Events.Publish(h.Topics.Changes, c)
	}
}

func actorOr401(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		http.Error(w, "missing actor", http.StatusUnauthorized)
	}
	return actor, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrPermissionDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrConcurrentModification):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrSettlementFailure):
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}
