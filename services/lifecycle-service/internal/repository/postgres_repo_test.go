package repository

import (
	"context"
	"database/sql"
	"testing"

	"agrilink-system/services/lifecycle-service/internal/domain"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResult struct{ rows int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.rows, nil }

type fakeExecer struct {
	queries []string
	rows    int64
	err     error
}

func (f *fakeExecer) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return fakeResult{rows: f.rows}, nil
}

func orderPayment() *domain.Payment {
	return &domain.Payment{
		ID:           "pay1",
		BuyerID:      "b1",
		FarmerID:     "f1",
		OrderID:      "o1",
		Amount:       100,
		FarmerAmount: 85,
		PlatformFee:  15,
		Status:       domain.PaymentPending,
		Direction:    domain.DirectionIncoming,
		Type:         domain.PaymentTypeOrder,
	}
}

func TestInsertOrderPaymentSkipsExistingWithoutFailingStatement(t *testing.T) {
	db := &fakeExecer{rows: 0}
	err := insertOrderPayment(context.Background(), db, orderPayment())
	assert.ErrorIs(t, err, domain.ErrDuplicatePayment)

	// The duplicate must resolve inside the INSERT itself. A unique
	// violation raised here would put the confirmation transaction into
	// the aborted state and make the following status UPDATE fail.
	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], "ON CONFLICT (order_id) WHERE order_id IS NOT NULL DO NOTHING")
}

func TestInsertOrderPaymentInsertsWhenAbsent(t *testing.T) {
	db := &fakeExecer{rows: 1}
	assert.NoError(t, insertOrderPayment(context.Background(), db, orderPayment()))
}

func TestInsertPaymentMapsUniqueViolation(t *testing.T) {
	db := &fakeExecer{err: &pq.Error{Code: "23505"}}
	err := insertPayment(context.Background(), db, orderPayment())
	assert.ErrorIs(t, err, domain.ErrDuplicatePayment)
}
