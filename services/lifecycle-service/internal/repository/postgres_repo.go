package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agrilink-system/services/lifecycle-service/internal/domain"

	"github.com/lib/pq"
)

// PostgresStore backs the three collections with Postgres. Status
// writes are conditional on the status the caller read (UPDATE ...
// WHERE status = expected), so conflicting transitions fail instead
// of overwriting each other. Schema in schema.sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Products() domain.ProductRepository { return &postgresProducts{s.db} }
func (s *PostgresStore) Orders() domain.OrderRepository     { return &postgresOrders{s.db} }
func (s *PostgresStore) Payments() domain.PaymentRepository { return &postgresPayments{s.db} }

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const isUniqueViolation = "23505"

func insertPayment(ctx context.Context, db execer, pay *domain.Payment) error {
	query := `INSERT INTO payments (id, buyer_id, farmer_id, order_id, amount, farmer_amount, platform_fee, status, direction, type, processed_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := db.ExecContext(ctx, query, paymentArgs(pay)...)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == isUniqueViolation {
		return domain.ErrDuplicatePayment
	}
	return err
}

// insertOrderPayment inserts an order payment unless the order already
// has one. A unique violation would abort an enclosing transaction, so
// losing the insert race must resolve inside the statement itself; the
// conflict target matches the partial unique index on order_id.
func insertOrderPayment(ctx context.Context, db execer, pay *domain.Payment) error {
	query := `INSERT INTO payments (id, buyer_id, farmer_id, order_id, amount, farmer_amount, platform_fee, status, direction, type, processed_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	          ON CONFLICT (order_id) WHERE order_id IS NOT NULL DO NOTHING`
	result, err := db.ExecContext(ctx, query, paymentArgs(pay)...)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrDuplicatePayment
	}
	return nil
}

func paymentArgs(pay *domain.Payment) []any {
	return []any{
		pay.ID,
		nullString(pay.BuyerID),
		pay.FarmerID,
		nullString(pay.OrderID),
		pay.Amount,
		pay.FarmerAmount,
		pay.PlatformFee,
		pay.Status,
		pay.Direction,
		pay.Type,
		nullTime(pay.ProcessedAt),
		pay.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type postgresProducts struct{ db *sql.DB }

func (r *postgresProducts) Create(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (id, farmer_id, region, category, quantity_available, unit, price_per_unit, quality_grade, status, collection_date, admin_notes, rejection_note, version, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.FarmerID, p.Region, p.Category, p.QuantityAvailable, p.Unit,
		p.PricePerUnit, string(p.QualityGrade), p.Status, nullTime(p.CollectionDate),
		p.AdminNotes, p.RejectionNote, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

const productColumns = `id, farmer_id, region, category, quantity_available, unit, price_per_unit, quality_grade, status, collection_date, admin_notes, rejection_note, version, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	var grade string
	var collectionDate sql.NullTime
	err := row.Scan(
		&p.ID, &p.FarmerID, &p.Region, &p.Category, &p.QuantityAvailable, &p.Unit,
		&p.PricePerUnit, &grade, &p.Status, &collectionDate,
		&p.AdminNotes, &p.RejectionNote, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.QualityGrade = domain.QualityGrade(grade)
	if collectionDate.Valid {
		p.CollectionDate = &collectionDate.Time
	}
	return p, nil
}

func (r *postgresProducts) Get(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return p, err
}

func (r *postgresProducts) UpdateStatus(ctx context.Context, p *domain.Product, expected domain.ProductStatus) error {
	return r.update(ctx, r.db, p, expected)
}

func (r *postgresProducts) update(ctx context.Context, db execer, p *domain.Product, expected domain.ProductStatus) error {
	query := `UPDATE products
	          SET status = $1, quality_grade = $2, collection_date = $3, admin_notes = $4, rejection_note = $5, version = version + 1, updated_at = $6
	          WHERE id = $7 AND status = $8`
	result, err := db.ExecContext(ctx, query,
		p.Status, string(p.QualityGrade), nullTime(p.CollectionDate),
		p.AdminNotes, p.RejectionNote, p.UpdatedAt, p.ID, expected,
	)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return r.classifyMiss(ctx, p.ID, expected)
	}
	p.Version++
	return nil
}

func (r *postgresProducts) classifyMiss(ctx context.Context, id string, expected domain.ProductStatus) error {
	var current string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM products WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: product %s is %s, expected %s",
		domain.ErrConcurrentModification, id, current, expected)
}

func (r *postgresProducts) UpdateStatusWithPayment(ctx context.Context, p *domain.Product, expected domain.ProductStatus, pay *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertPayment(ctx, tx, pay); err != nil {
		return err
	}
	if err := r.update(ctx, tx, p, expected); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresProducts) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE ($1 = '' OR farmer_id = $1) AND (cardinality($2::text[]) = 0 OR status = ANY($2))`
	statuses := make([]string, len(filter.Statuses))
	for i, s := range filter.Statuses {
		statuses[i] = string(s)
	}
	rows, err := r.db.QueryContext(ctx, query, filter.FarmerID, pq.Array(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *postgresProducts) FindDueCollections(ctx context.Context, asOf time.Time) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
	          WHERE status = $1 AND collection_date IS NOT NULL AND collection_date <= $2
	          LIMIT 100`
	rows, err := r.db.QueryContext(ctx, query, domain.ProductScheduledCollection, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type postgresOrders struct{ db *sql.DB }

func (r *postgresOrders) Create(ctx context.Context, o *domain.Order) error {
	query := `INSERT INTO orders (id, buyer_id, product_id, farmer_id, quantity, unit_price, total_amount, delivery_address, tracking_id, status, delivery_date, version, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.BuyerID, o.ProductID, o.FarmerID, o.Quantity, o.UnitPrice,
		o.TotalAmount, o.DeliveryAddress, o.TrackingID, o.Status,
		nullTime(o.DeliveryDate), o.Version, o.CreatedAt, o.UpdatedAt,
	)
	return err
}

const orderColumns = `id, buyer_id, product_id, farmer_id, quantity, unit_price, total_amount, delivery_address, tracking_id, status, delivery_date, version, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	o := &domain.Order{}
	var deliveryDate sql.NullTime
	err := row.Scan(
		&o.ID, &o.BuyerID, &o.ProductID, &o.FarmerID, &o.Quantity, &o.UnitPrice,
		&o.TotalAmount, &o.DeliveryAddress, &o.TrackingID, &o.Status,
		&deliveryDate, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deliveryDate.Valid {
		o.DeliveryDate = &deliveryDate.Time
	}
	return o, nil
}

func (r *postgresOrders) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	return o, err
}

func (r *postgresOrders) UpdateStatus(ctx context.Context, o *domain.Order, expected domain.OrderStatus) error {
	return r.update(ctx, r.db, o, expected)
}

func (r *postgresOrders) update(ctx context.Context, db execer, o *domain.Order, expected domain.OrderStatus) error {
	query := `UPDATE orders
	          SET status = $1, tracking_id = $2, delivery_date = $3, version = version + 1, updated_at = $4
	          WHERE id = $5 AND status = $6`
	result, err := db.ExecContext(ctx, query,
		o.Status, o.TrackingID, nullTime(o.DeliveryDate), o.UpdatedAt, o.ID, expected,
	)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return r.classifyMiss(ctx, o.ID, expected)
	}
	o.Version++
	return nil
}

func (r *postgresOrders) classifyMiss(ctx context.Context, id string, expected domain.OrderStatus) error {
	var current string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: order %s is %s, expected %s",
		domain.ErrConcurrentModification, id, current, expected)
}

func (r *postgresOrders) UpdateStatusWithPayment(ctx context.Context, o *domain.Order, expected domain.OrderStatus, pay *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Idempotent on the order reference: a payment left by an earlier
	// confirmation attempt is kept and the status write still runs.
	if err := insertOrderPayment(ctx, tx, pay); err != nil && !errors.Is(err, domain.ErrDuplicatePayment) {
		return err
	}
	if err := r.update(ctx, tx, o, expected); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresOrders) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type postgresPayments struct{ db *sql.DB }

func (r *postgresPayments) Create(ctx context.Context, pay *domain.Payment) error {
	return insertPayment(ctx, r.db, pay)
}

const paymentColumns = `id, buyer_id, farmer_id, order_id, amount, farmer_amount, platform_fee, status, direction, type, processed_at, created_at`

func scanPayment(row interface{ Scan(...any) error }) (*domain.Payment, error) {
	pay := &domain.Payment{}
	var buyerID, orderID sql.NullString
	var processedAt sql.NullTime
	err := row.Scan(
		&pay.ID, &buyerID, &pay.FarmerID, &orderID, &pay.Amount, &pay.FarmerAmount,
		&pay.PlatformFee, &pay.Status, &pay.Direction, &pay.Type, &processedAt, &pay.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	pay.BuyerID = buyerID.String
	pay.OrderID = orderID.String
	if processedAt.Valid {
		pay.ProcessedAt = &processedAt.Time
	}
	return pay, nil
}

func (r *postgresPayments) Get(ctx context.Context, id string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	pay, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment %s", domain.ErrNotFound, id)
	}
	return pay, err
}

func (r *postgresPayments) GetByOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID)
	pay, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment for order %s", domain.ErrNotFound, orderID)
	}
	return pay, err
}

func (r *postgresPayments) UpdateStatus(ctx context.Context, pay *domain.Payment, expected domain.PaymentStatus) error {
	query := `UPDATE payments SET status = $1, processed_at = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, pay.Status, nullTime(pay.ProcessedAt), pay.ID, expected)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		var current string
		err := r.db.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = $1`, pay.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: payment %s", domain.ErrNotFound, pay.ID)
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: payment %s is %s, expected %s",
			domain.ErrConcurrentModification, pay.ID, current, expected)
	}
	return nil
}

func (r *postgresPayments) List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ($1 = '' OR farmer_id = $1)`
	rows, err := r.db.QueryContext(ctx, query, filter.FarmerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pay)
	}
	return out, rows.Err()
}
