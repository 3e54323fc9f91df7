package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"agrilink-system/services/lifecycle-service/internal/domain"
	"agrilink-system/services/lifecycle-service/internal/lifecycle"
)

type submitProductRequest struct {
	Region       string              `json:"region"`
	Category     string              `json:"category"`
	Quantity     int64               `json:"quantity"`
	Unit         string              `json:"unit"`
	PricePerUnit int64               `json:"price_per_unit"`
	QualityGrade domain.QualityGrade `json:"quality_grade,omitempty"`
}

func (h *LifecycleHandler) HandleSubmitProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	var req submitProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.Engine.SubmitProduct(r.Context(), actor, lifecycle.ProductInput{
		Region:       req.Region,
		Category:     req.Category,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		PricePerUnit: req.PricePerUnit,
		QualityGrade: req.QualityGrade,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.dispatch(res)
	writeJSON(w, http.StatusCreated, res.Product)
}

type productTransitionRequest struct {
	Target         domain.ProductStatus `json:"target"`
	QualityGrade   domain.QualityGrade  `json:"quality_grade,omitempty"`
	CollectionDate *time.Time           `json:"collection_date,omitempty"`
	Notes          string               `json:"notes,omitempty"`
}

type productTransitionResponse struct {
	Product *domain.Product `json:"product"`
	Payment *domain.Payment `json:"payment,omitempty"`
}

func (h *LifecycleHandler) HandleProductTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	var req productTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.Engine.TransitionProduct(r.Context(), actor, r.PathValue("id"), req.Target, lifecycle.ProductTransitionOptions{
		QualityGrade:   req.QualityGrade,
		CollectionDate: req.CollectionDate,
		Notes:          req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.dispatch(res)
	writeJSON(w, http.StatusOK, productTransitionResponse{Product: res.Product, Payment: res.Payment})
}

func (h *LifecycleHandler) HandleAggregatedProducts(w http.ResponseWriter, r *http.Request) {
	aggregated, err := h.Engine.AggregatedProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aggregated)
}
