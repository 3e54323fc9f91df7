package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"agrilink-system/services/lifecycle-service/internal/domain"
	"agrilink-system/services/lifecycle-service/internal/lifecycle"
)

type placeOrderRequest struct {
	ProductID       string `json:"product_id"`
	Quantity        int64  `json:"quantity"`
	DeliveryAddress string `json:"delivery_address"`
}

func (h *LifecycleHandler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.Engine.PlaceOrder(r.Context(), actor, lifecycle.OrderInput{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		DeliveryAddress: req.DeliveryAddress,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.dispatch(res)
	writeJSON(w, http.StatusCreated, res.Order)
}

type orderTransitionRequest struct {
	Target     domain.OrderStatus `json:"target"`
	TrackingID string             `json:"tracking_id,omitempty"`
}

type orderTransitionResponse struct {
	Order   *domain.Order   `json:"order"`
	Payment *domain.Payment `json:"payment,omitempty"`
}

func (h *LifecycleHandler) HandleOrderTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	var req orderTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.Engine.TransitionOrder(r.Context(), actor, r.PathValue("id"), req.Target, lifecycle.OrderTransitionOptions{
		TrackingID: req.TrackingID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.dispatch(res)
	writeJSON(w, http.StatusOK, orderTransitionResponse{Order: res.Order, Payment: res.Payment})
}

// HandleOrderPayment looks up the payment for an order. A caller that
// just confirmed may race the write, so the lookup retries with a
// short exponential backoff before giving up.
func (h *LifecycleHandler) HandleOrderPayment(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorOr401(w, r); !ok {
		return
	}
	orderID := r.PathValue("id")
	pay, err := retryNotFound(r.Context(), 4, 50*time.Millisecond, func() (*domain.Payment, error) {
		return h.Engine.PaymentForOrder(r.Context(), orderID)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pay)
}

func (h *LifecycleHandler) HandlePayout(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.MarkPaymentPaid(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	h.dispatch(res)
	writeJSON(w, http.StatusOK, res.Payment)
}

// retryNotFound runs fn with bounded exponential backoff while it
// reports ErrNotFound. Only read-after-write lookups use this;
// lifecycle transitions fail fast instead.
func retryNotFound[T any](ctx context.Context, attempts int, initial time.Duration, fn func() (T, error)) (T, error) {
	var zero T
	delay := initial
	for i := 0; ; i++ {
		v, err := fn()
		if err == nil || !errors.Is(err, domain.ErrNotFound) || i == attempts-1 {
			return v, err
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
