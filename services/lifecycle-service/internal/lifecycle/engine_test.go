package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"agrilink-system/services/lifecycle-service/internal/domain"
	"agrilink-system/services/lifecycle-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	adminActor  = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	farmerActor = domain.Actor{ID: "farmer-1", Role: domain.RoleFarmer}
	buyerActor  = domain.Actor{ID: "buyer-1", Role: domain.RoleBuyer}
)

func newTestEngine(t *testing.T) (*Engine, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	engine := NewEngine(store.Products(), store.Orders(), store.Payments())
	return engine, store
}

func submitProduct(t *testing.T, engine *Engine, in ProductInput) *domain.Product {
	t.Helper()
	res, err := engine.SubmitProduct(context.Background(), farmerActor, in)
	require.NoError(t, err)
	return res.Product
}

func advanceProduct(t *testing.T, engine *Engine, id string, target domain.ProductStatus, opts ProductTransitionOptions) *Result {
	t.Helper()
	res, err := engine.TransitionProduct(context.Background(), adminActor, id, target, opts)
	require.NoError(t, err, "transition to %s", target)
	return res
}

func TestSubmitProductFarmerOnly(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.SubmitProduct(ctx, buyerActor, ProductInput{Category: "tomatoes", Quantity: 10, PricePerUnit: 100})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = engine.SubmitProduct(ctx, adminActor, ProductInput{Category: "tomatoes", Quantity: 10, PricePerUnit: 100})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	res, err := engine.SubmitProduct(ctx, farmerActor, ProductInput{Category: "tomatoes", Quantity: 10, Unit: "kg", PricePerUnit: 100})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductSubmitted, res.Product.Status)
	assert.Equal(t, farmerActor.ID, res.Product.FarmerID)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, farmerActor.ID, res.Notifications[0].TargetUserID)
}

func TestSubmitProductRejectsNegativeValues(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.SubmitProduct(ctx, farmerActor, ProductInput{Category: "tomatoes", Quantity: -1, PricePerUnit: 100})
	assert.Error(t, err)

	_, err = engine.SubmitProduct(ctx, farmerActor, ProductInput{Category: "tomatoes", Quantity: 1, PricePerUnit: -100})
	assert.Error(t, err)
}

func TestApproveRequiresQualityGrade(t *testing.T) {
	engine, _ := newTestEngine(t)
	p := submitProduct(t, engine, ProductInput{Category: "tomatoes", Quantity: 10, PricePerUnit: 100})

	_, err := engine.TransitionProduct(context.Background(), adminActor, p.ID, domain.ProductApproved, ProductTransitionOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	// Status must be untouched after the failed attempt.
	stored, getErr := engine.products.Get(context.Background(), p.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.ProductSubmitted, stored.Status)

	res := advanceProduct(t, engine, p.ID, domain.ProductApproved, ProductTransitionOptions{QualityGrade: domain.GradeA})
	assert.Equal(t, domain.ProductApproved, res.Product.Status)
	assert.Equal(t, domain.GradeA, res.Product.QualityGrade)
}

func TestApproveClearsPriorRejectionNote(t *testing.T) {
	engine, _ := newTestEngine(t)
	p := submitProduct(t, engine, ProductInput{Category: "tomatoes", Quantity: 10, PricePerUnit: 100, QualityGrade: domain.GradeB})

	res := advanceProduct(t, engine, p.ID, domain.ProductApproved, ProductTransitionOptions{})
	assert.Empty(t, res.Product.RejectionNote)
	assert.Equal(t, domain.GradeB, res.Product.QualityGrade, "grade from submission should carry over")
}

func TestRejectRequiresNote(t *testing.T) {
	engine, _ := newTestEngine(t)
	p := submitProduct(t, engine, ProductInput{Category: "tomatoes", Quantity: 10, PricePerUnit: 100})

	_, err := engine.TransitionProduct(context.Background(), adminActor, p.ID, domain.ProductRejected, ProductTransitionOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	res := advanceProduct(t, engine, p.ID, domain.ProductRejected, ProductTransitionOptions{Notes: "photos too blurry"})
	assert.Equal(t, "photos too blurry", res.Product.RejectionNote)
	require.Len(t, res.Notifications, 1)
	assert.Contains(t, res.Notifications[0].Message, "photos too blurry")
}

func TestScheduleCollectionDefaultsDate(t *testing.T) {
	engine, _ := newTestEngine(t)
	fixed := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC)
	engine.now = func() time.Time { return fixed }

	p := submitProduct(t, engine, ProductInput{Category: "tomatoes", Quantity: 10, PricePerUnit: 100, QualityGrade: domain.GradeA})
	advanceProduct(t, engine, p.ID, domain.ProductApproved, ProductTransitionOptions{})
	res := advanceProduct(t, engine, p.ID, domain.ProductScheduledCollection, ProductTransitionOptions{})

	require.NotNil(t, res.Product.CollectionDate)
	assert.Equal(t, fixed.Truncate(24*time.Hour), *res.Product.CollectionDate)

	engine2, _ := newTestEngine(t)
	supplied := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	p2 := submitProduct(t, engine2, ProductInput{Category: "corn", Quantity: 5, PricePerUnit: 30, QualityGrade: domain.GradeA})
	advanceProduct(t, engine2, p2.ID, domain.ProductApproved, ProductTransitionOptions{})
	res2 := advanceProduct(t, engine2, p2.ID, domain.ProductScheduledCollection, ProductTransitionOptions{CollectionDate: &supplied})
	require.NotNil(t, res2.Product.CollectionDate)
	assert.Equal(t, supplied, *res2.Product.CollectionDate)
}

func TestCollectAcceptsGradeOverrideAndNotes(t *testing.T) {
	engine, _ := newTestEngine(t)
	p := submitProduct(t, engine, ProductInput{Category: "tomatoes", Quantity: 10, PricePerUnit: 100, QualityGrade: domain.GradeA})
	advanceProduct(t, engine, p.ID, domain.ProductApproved, ProductTransitionOptions{})
	advanceProduct(t, engine, p.ID, domain.ProductScheduledCollection, ProductTransitionOptions{})

	res := advanceProduct(t, engine, p.ID, domain.ProductCollected, ProductTransitionOptions{
		QualityGrade: domain.GradeBPlus,
		Notes:        "slight bruising on arrival",
	})
	assert.Equal(t, domain.GradeBPlus, res.Product.QualityGrade)
	assert.Equal(t, "slight bruising on arrival", res.Product.AdminNotes)
	assert.Nil(t, res.Payment, "collection itself must not create a payment")
}

func TestEndToEndCollectionSettlement(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	p := submitProduct(t, engine, ProductInput{
		Category: "tomatoes", Quantity: 100, Unit: "kg", PricePerUnit: 50, QualityGrade: domain.GradeA,
	})
	advanceProduct(t, engine, p.ID, domain.ProductApproved, ProductTransitionOptions{})
	advanceProduct(t, engine, p.ID, domain.ProductScheduledCollection, ProductTransitionOptions{})
	advanceProduct(t, engine, p.ID, domain.ProductCollected, ProductTransitionOptions{})
	res := advanceProduct(t, engine, p.ID, domain.ProductPaymentProcessed, ProductTransitionOptions{})

	require.NotNil(t, res.Payment)
	assert.Equal(t, int64(5000), res.Payment.Amount)
	assert.Equal(t, int64(4750), res.Payment.FarmerAmount)
	assert.Equal(t, int64(250), res.Payment.PlatformFee)
	assert.Equal(t, domain.PaymentPaidToFarmer, res.Payment.Status)
	assert.Equal(t, domain.PaymentTypeCollection, res.Payment.Type)
	assert.Equal(t, domain.DirectionOutgoing, res.Payment.Direction)
	assert.Empty(t, res.Payment.BuyerID)
	require.NotNil(t, res.Payment.ProcessedAt)

	stored, err := store.Payments().Get(ctx, res.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Payment.FarmerAmount, stored.FarmerAmount)

	earnings, err := engine.FarmerEarnings(ctx, farmerActor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4750), earnings.Total)
	assert.Equal(t, int64(4750), earnings.Paid)
	assert.Equal(t, int64(0), earnings.Pending)
}

// failingSettlementProducts forces the atomic update+payment write to
// fail, standing in for a store-side settlement failure.
type failingSettlementProducts struct {
	domain.ProductRepository
}

func (r *failingSettlementProducts) UpdateStatusWithPayment(ctx context.Context, p *domain.Product, expected domain.ProductStatus, pay *domain.Payment) error {
	return fmt.Errorf("payment insert refused")
}

func TestSettlementFailureLeavesProductCollected(t *testing.T) {
	store := repository.NewMemoryStore()
	engine := NewEngine(&failingSettlementProducts{store.Products()}, store.Orders(), store.Payments())
	ctx := context.Background()

	p := submitProduct(t, engine, ProductInput{Category: "tomatoes", Quantity: 100, PricePerUnit: 50, QualityGrade: domain.GradeA})
	advanceProduct(t, engine, p.ID, domain.ProductApproved, ProductTransitionOptions{})
	advanceProduct(t, engine, p.ID, domain.ProductScheduledCollection, ProductTransitionOptions{})
	advanceProduct(t, engine, p.ID, domain.ProductCollected, ProductTransitionOptions{})

	_, err := engine.TransitionProduct(ctx, adminActor, p.ID, domain.ProductPaymentProcessed, ProductTransitionOptions{})
	require.ErrorIs(t, err, domain.ErrSettlementFailure)

	stored, err := store.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductCollected, stored.Status, "status must not advance when settlement fails")

	payments, err := store.Payments().List(ctx, domain.PaymentFilter{})
	require.NoError(t, err)
	assert.Empty(t, payments, "no payment may survive a failed settlement")
}

func TestProductReviewDetour(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	p := submitProduct(t, engine, ProductInput{Category: "tomatoes", Quantity: 10, PricePerUnit: 100, QualityGrade: domain.GradeA})

	advanceProduct(t, engine, p.ID, domain.ProductPendingReview, ProductTransitionOptions{})
	stored, err := store.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductPendingReview, stored.Status)

	// The review stop changes nothing about what happens next.
	advanceProduct(t, engine, p.ID, domain.ProductApproved, ProductTransitionOptions{})
	stored, err = store.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProductApproved, stored.Status)
}

func TestIllegalTransitionLeavesStatusUnchanged(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	p := submitProduct(t, engine, ProductInput{Category: "tomatoes", Quantity: 10, PricePerUnit: 100})

	for _, target := range []domain.ProductStatus{
		domain.ProductScheduledCollection,
		domain.ProductCollected,
		domain.ProductPaymentProcessed,
		domain.ProductSubmitted,
	} {
		_, err := engine.TransitionProduct(ctx, adminActor, p.ID, target, ProductTransitionOptions{})
		require.ErrorIs(t, err, domain.ErrInvalidTransition, "submitted -> %s", target)

		stored, getErr := store.Products().Get(ctx, p.ID)
		require.NoError(t, getErr)
		assert.Equal(t, domain.ProductSubmitted, stored.Status)
	}
}

func TestTransitionUnknownProduct(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.TransitionProduct(context.Background(), adminActor, "no-such-id", domain.ProductApproved, ProductTransitionOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentProductTransitionsOneWinner(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	p := submitProduct(t, engine, ProductInput{Category: "tomatoes", Quantity: 10, PricePerUnit: 100, QualityGrade: domain.GradeA})

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, results[0] = engine.TransitionProduct(ctx, adminActor, p.ID, domain.ProductApproved, ProductTransitionOptions{})
	}()
	go func() {
		defer wg.Done()
		_, results[1] = engine.TransitionProduct(ctx, adminActor, p.ID, domain.ProductRejected, ProductTransitionOptions{Notes: "duplicate listing"})
	}()
	wg.Wait()

	var successes, failures int
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		failures++
		assert.True(t,
			errors.Is(err, domain.ErrConcurrentModification) || errors.Is(err, domain.ErrInvalidTransition),
			"loser must fail with a conflict-class error, got %v", err)
	}
	assert.Equal(t, 1, successes, "exactly one of the racing transitions may win")
	assert.Equal(t, 1, failures)

	stored, err := store.Products().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Contains(t, []domain.ProductStatus{domain.ProductApproved, domain.ProductRejected}, stored.Status)
}
