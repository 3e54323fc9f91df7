package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"agrilink-system/services/lifecycle-service/internal/domain"
	"agrilink-system/services/lifecycle-service/internal/lifecycle"
	"agrilink-system/services/lifecycle-service/internal/middleware"
	"agrilink-system/services/lifecycle-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingPublisher struct {
	mu       sync.Mutex
	messages map[string][]any
}

func newCapturingPublisher() *capturingPublisher {
	return &capturingPublisher{messages: make(map[string][]any)}
}

func (p *capturingPublisher) Publish(topic string, message any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[topic] = append(p.messages[topic], message)
}

func (p *capturingPublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages[topic])
}

func newTestHandler(t *testing.T) (*LifecycleHandler, *capturingPublisher) {
	t.Helper()
	store := repository.NewMemoryStore()
	events := newCapturingPublisher()
	return &LifecycleHandler{
		Engine: lifecycle.NewEngine(store.Products(), store.Orders(), store.Payments()),
		Events: events,
		Topics: Topics{Notifications: "notifications", Changes: "entity-changes"},
	}, events
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, actor *domain.Actor, pathID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if pathID != "" {
		req.SetPathValue("id", pathID)
	}
	rec := httptest.NewRecorder()
	if actor != nil {
		req.Header.Set("X-Actor-ID", actor.ID)
		req.Header.Set("X-Actor-Role", string(actor.Role))
	}
	middleware.Actor(handler).ServeHTTP(rec, req)
	return rec
}

var (
	farmer = domain.Actor{ID: "farmer-1", Role: domain.RoleFarmer}
	admin  = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
)

func TestActorMiddlewareRejectsMissingHeaders(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doJSON(t, h.HandleSubmitProduct, http.MethodPost, "/products", nil, "", submitProductRequest{Category: "corn"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActorMiddlewareRejectsUnknownRole(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/products", nil)
	req.Header.Set("X-Actor-ID", "u-1")
	req.Header.Set("X-Actor-Role", "superuser")
	rec := httptest.NewRecorder()
	middleware.Actor(http.HandlerFunc(h.HandleSubmitProduct)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitAndTransitionOverHTTP(t *testing.T) {
	h, events := newTestHandler(t)

	rec := doJSON(t, h.HandleSubmitProduct, http.MethodPost, "/products", &farmer, "", submitProductRequest{
		Category: "tomatoes", Quantity: 100, Unit: "kg", PricePerUnit: 50, QualityGrade: domain.GradeA,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var p domain.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, domain.ProductSubmitted, p.Status)
	assert.Equal(t, 1, events.count("notifications"))
	assert.Equal(t, 1, events.count("entity-changes"))

	rec = doJSON(t, h.HandleProductTransition, http.MethodPost, "/products/"+p.ID+"/transition", &admin, p.ID, productTransitionRequest{
		Target: domain.ProductApproved,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp productTransitionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, domain.ProductApproved, resp.Product.Status)
	assert.Nil(t, resp.Payment)
}

func TestTransitionErrorMapping(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := doJSON(t, h.HandleSubmitProduct, http.MethodPost, "/products", &farmer, "", submitProductRequest{
		Category: "tomatoes", Quantity: 10, PricePerUnit: 50,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var p domain.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))

	// Farmer may not advance status.
	rec = doJSON(t, h.HandleProductTransition, http.MethodPost, "/products/"+p.ID+"/transition", &farmer, p.ID, productTransitionRequest{
		Target:       domain.ProductApproved,
		QualityGrade: domain.GradeA,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Illegal edge; the body tells the caller where the product may go.
	rec = doJSON(t, h.HandleProductTransition, http.MethodPost, "/products/"+p.ID+"/transition", &admin, p.ID, productTransitionRequest{
		Target: domain.ProductCollected,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "allowed:")

	// Unknown entity.
	rec = doJSON(t, h.HandleProductTransition, http.MethodPost, "/products/nope/transition", &admin, "nope", productTransitionRequest{
		Target: domain.ProductApproved,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderPaymentLookupAfterConfirmation(t *testing.T) {
	h, _ := newTestHandler(t)
	buyer := domain.Actor{ID: "buyer-1", Role: domain.RoleBuyer}

	rec := doJSON(t, h.HandleSubmitProduct, http.MethodPost, "/products", &farmer, "", submitProductRequest{
		Category: "tomatoes", Quantity: 100, PricePerUnit: 50, QualityGrade: domain.GradeA,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var p domain.Product
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))

	rec = doJSON(t, h.HandlePlaceOrder, http.MethodPost, "/orders", &buyer, "", placeOrderRequest{
		ProductID: p.ID, Quantity: 10, DeliveryAddress: "12 Market Road",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var o domain.Order
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&o))

	rec = doJSON(t, h.HandleOrderTransition, http.MethodPost, "/orders/"+o.ID+"/transition", &admin, o.ID, orderTransitionRequest{
		Target: domain.OrderConfirmed,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h.HandleOrderPayment, http.MethodGet, "/orders/"+o.ID+"/payment", &buyer, o.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pay domain.Payment
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pay))
	assert.Equal(t, o.ID, pay.OrderID)
	assert.Equal(t, int64(500), pay.Amount)
	assert.Equal(t, int64(425), pay.FarmerAmount)
	assert.Equal(t, int64(75), pay.PlatformFee)
}
