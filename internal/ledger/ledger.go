package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/fjod/storefront/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	ErrDuplicateTransaction = fmt.Errorf("%w: payment attempt already recorded", domain.ErrConflict)
	ErrTransactionNotFound  = fmt.Errorf("%w: payment transaction", domain.ErrNotFound)
)

// Ledger keeps an append-mostly record of every attempt made against the
// payment processor. Orders live in MongoDB; this is the financial trail.
type Ledger struct {
	db *sql.DB
}

func New(ctx context.Context, dsn string) (*Ledger, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &Ledger{db: db}, nil
}

func (l *Ledger) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(l.db, &postgres.Config{
		MigrationsTable: "ledger_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// Record stores a pending attempt before the processor is called.
func (l *Ledger) Record(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt, tx.UpdatedAt = now, now
	if tx.Status == "" {
		tx.Status = domain.TransactionPending
	}

	query := `INSERT INTO payment_transactions
	          (id, order_id, user_id, idempotency_key, amount_cents, currency, status, method, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`

	_, err := l.db.ExecContext(ctx, query,
		tx.ID,
		tx.OrderID,
		tx.UserID,
		tx.IdempotencyKey,
		int64(tx.Amount),
		tx.Currency,
		string(tx.Status),
		tx.Method,
		now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("insert payment transaction: %w", err)
	}
	return nil
}

// Complete records the processor outcome for an attempt.
func (l *Ledger) Complete(ctx context.Context, id string, status domain.TransactionStatus, gatewayTxID, method, reason string) error {
	query := `UPDATE payment_transactions
	          SET status = $2, gateway_transaction_id = $3, method = COALESCE(NULLIF($4::text, ''), method),
	              failure_reason = $5, updated_at = NOW()
	          WHERE id = $1`

	res, err := l.db.ExecContext(ctx, query, id, string(status), gatewayTxID, method, reason)
	if err != nil {
		return fmt.Errorf("update payment transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// MarkVoided flags every captured or authorized attempt of the order as voided.
func (l *Ledger) MarkVoided(ctx context.Context, orderID string) error {
	query := `UPDATE payment_transactions SET status = $2, updated_at = NOW()
	          WHERE order_id = $1 AND status IN ($3, $4)`
	_, err := l.db.ExecContext(ctx, query, orderID,
		string(domain.TransactionVoided),
		string(domain.TransactionAuthorized),
		string(domain.TransactionSettled))
	if err != nil {
		return fmt.Errorf("void payment transactions: %w", err)
	}
	return nil
}

const selectTransaction = `SELECT id, order_id, user_id, idempotency_key, amount_cents, currency, status, method,
                                  gateway_transaction_id, failure_reason, created_at, updated_at
                           FROM payment_transactions`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var amount int64
	var status string
	if err := row.Scan(
		&tx.ID,
		&tx.OrderID,
		&tx.UserID,
		&tx.IdempotencyKey,
		&amount,
		&tx.Currency,
		&status,
		&tx.Method,
		&tx.GatewayTransactionID,
		&tx.FailureReason,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	); err != nil {
		return nil, err
	}
	tx.Amount = domain.Money(amount)
	tx.Status = domain.TransactionStatus(status)
	return &tx, nil
}

// GetByKey returns the attempt recorded under an idempotency key.
func (l *Ledger) GetByKey(ctx context.Context, key string) (*domain.Transaction, error) {
	tx, err := scanTransaction(l.db.QueryRowContext(ctx, selectTransaction+` WHERE idempotency_key = $1`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment transaction: %w", err)
	}
	return tx, nil
}

func (l *Ledger) ListByOrder(ctx context.Context, orderID string) ([]*domain.Transaction, error) {
	rows, err := l.db.QueryContext(ctx, selectTransaction+` WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query payment transactions: %w", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return txs, nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
