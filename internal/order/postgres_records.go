package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pranjal1404/easyshopin/internal/cart"
)

// PostgresCredentials configures the connection to the order-of-record
// database.
type PostgresCredentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// PostgresRecords is the durable Records implementation. Every mutation
// writes its outbox event in the same transaction.
type PostgresRecords struct {
	db    *sql.DB
	rules cart.PricingRules
}

func NewPostgresRecords(cred *PostgresCredentials, rules cart.PricingRules) (*PostgresRecords, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &PostgresRecords{db: db, rules: rules}, nil
}

func (r *PostgresRecords) RunMigrations(cred *PostgresCredentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

const orderColumns = `id, client_token, user_id, items, shipping_address, payment_method,
	items_price, shipping_price, tax_price, total_price,
	is_paid, paid_at, payment, is_delivered, delivered_at, created_at, updated_at`

func (r *PostgresRecords) CreateOrder(ctx context.Context, snap *Snapshot) (*Order, error) {
	totals := computeTotals(snap.Items, r.rules)

	itemsJSON, err := json.Marshal(snap.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(snap.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	now := time.Now().UTC()
	ord := &Order{
		ID:              uuid.New(),
		ClientToken:     snap.ClientToken,
		UserID:          snap.UserID,
		Items:           append([]OrderItem(nil), snap.Items...),
		ShippingAddress: snap.ShippingAddress,
		PaymentMethod:   snap.PaymentMethod,
		ItemsPrice:      totals.ItemsPrice,
		ShippingPrice:   totals.ShippingPrice,
		TaxPrice:        totals.TaxPrice,
		TotalPrice:      totals.TotalPrice,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create order tx: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO orders (id, client_token, user_id, items, shipping_address, payment_method,
	              items_price, shipping_price, tax_price, total_price, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, insertErr := tx.ExecContext(ctx, query,
		ord.ID,
		snap.ClientToken,
		ord.UserID,
		itemsJSON,
		addressJSON,
		ord.PaymentMethod,
		ord.ItemsPrice,
		ord.ShippingPrice,
		ord.TaxPrice,
		ord.TotalPrice,
		ord.CreatedAt,
		ord.UpdatedAt)

	if insertErr != nil {
		var pqErr *pq.Error
		if errors.As(insertErr, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateToken
		}
		return nil, fmt.Errorf("insert order: %w", insertErr)
	}

	if err := insertOutboxEvent(ctx, tx, EventOrderCreated, ord); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create order tx: %w", err)
	}
	return ord, nil
}

func (r *PostgresRecords) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrderFrom(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRecords) FindByClientToken(ctx context.Context, userID, token string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 AND client_token = $2`
	return scanOrderFrom(r.db.QueryRowContext(ctx, query, userID, token))
}

func (r *PostgresRecords) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	return collectOrders(rows)
}

func (r *PostgresRecords) ListAll(ctx context.Context) ([]*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query all orders: %w", err)
	}
	return collectOrders(rows)
}

func (r *PostgresRecords) RecordPayment(ctx context.Context, id uuid.UUID, rec PaymentRecord) (*Order, error) {
	paymentJSON, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment record: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record payment tx: %w", err)
	}
	defer tx.Rollback()

	// The is_paid guard makes the first capture report win; later
	// reports fall through to the ErrAlreadyPaid path.
	query := `UPDATE orders
	          SET is_paid = TRUE, paid_at = NOW(), payment = $2, updated_at = NOW()
	          WHERE id = $1 AND is_paid = FALSE`

	res, updateErr := tx.ExecContext(ctx, query, id, paymentJSON)
	if updateErr != nil {
		return nil, fmt.Errorf("record payment: %w", updateErr)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("record payment rows affected: %w", err)
	}

	if affected == 0 {
		ord, getErr := r.GetOrder(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return ord, ErrAlreadyPaid
	}

	ord, err := scanOrderFrom(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := insertOutboxEvent(ctx, tx, EventOrderPaid, ord); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record payment tx: %w", err)
	}
	return ord, nil
}

func (r *PostgresRecords) MarkDelivered(ctx context.Context, id uuid.UUID) (*Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mark delivered tx: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE orders
	          SET is_delivered = TRUE, delivered_at = NOW(), updated_at = NOW()
	          WHERE id = $1 AND is_paid = TRUE AND is_delivered = FALSE`

	res, updateErr := tx.ExecContext(ctx, query, id)
	if updateErr != nil {
		return nil, fmt.Errorf("mark delivered: %w", updateErr)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("mark delivered rows affected: %w", err)
	}

	if affected == 0 {
		ord, getErr := r.GetOrder(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if !ord.IsPaid {
			return nil, ErrNotPaid
		}
		// Already delivered; repeating the call changes nothing.
		return ord, nil
	}

	ord, err := scanOrderFrom(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := insertOutboxEvent(ctx, tx, EventOrderDelivered, ord); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mark delivered tx: %w", err)
	}
	return ord, nil
}

func (r *PostgresRecords) GetUnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	query := `SELECT id, event_type, aggregate_id, payload, created_at, published_at
	          FROM order_outbox WHERE published_at IS NULL ORDER BY id LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query unpublished events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.AggregateID, &ev.Payload, &ev.CreatedAt, &ev.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *PostgresRecords) MarkEventPublished(ctx context.Context, eventID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE order_outbox SET published_at = NOW() WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("mark event published: %w", err)
	}
	return nil
}

func (r *PostgresRecords) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrderFrom(row rowScanner) (*Order, error) {
	var (
		ord         Order
		itemsJSON   []byte
		addressJSON []byte
		paymentJSON []byte
	)
	err := row.Scan(
		&ord.ID,
		&ord.ClientToken,
		&ord.UserID,
		&itemsJSON,
		&addressJSON,
		&ord.PaymentMethod,
		&ord.ItemsPrice,
		&ord.ShippingPrice,
		&ord.TaxPrice,
		&ord.TotalPrice,
		&ord.IsPaid,
		&ord.PaidAt,
		&paymentJSON,
		&ord.IsDelivered,
		&ord.DeliveredAt,
		&ord.CreatedAt,
		&ord.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &ord.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &ord.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if len(paymentJSON) > 0 {
		ord.Payment = &PaymentRecord{}
		if err := json.Unmarshal(paymentJSON, ord.Payment); err != nil {
			return nil, fmt.Errorf("unmarshal payment record: %w", err)
		}
	}
	return &ord, nil
}

func collectOrders(rows *sql.Rows) ([]*Order, error) {
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		ord, err := scanOrderFrom(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, ord)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, eventType string, ord *Order) error {
	payload, err := json.Marshal(ord)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO order_outbox (event_type, aggregate_id, payload, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		eventType, ord.ID.String(), payload)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
