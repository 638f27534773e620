package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("sqlite")

// Store implements port.TransactionStore and port.UserStore.
// Amounts are stored as decimal text and dates as Unix milliseconds.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func storeError(op string, err error) error {
	return &domain.ErrExternalService{Service: "sqlite/" + op, Err: err}
}

// --- Transactions ---

const transactionColumns = "id, description, type, amount, date_ms, category_name, category_icon, photo_url"

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var (
		tx     domain.Transaction
		typ    string
		amount string
		dateMs int64
	)
	if err := row.Scan(&tx.ID, &tx.Description, &typ, &amount, &dateMs,
		&tx.Category.Name, &tx.Category.Icon, &tx.PhotoURL); err != nil {
		return tx, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return tx, fmt.Errorf("decode amount %q: %w", amount, err)
	}
	tx.Type = domain.TransactionType(typ)
	tx.Amount = d
	tx.Date = time.UnixMilli(dateMs).UTC()
	return tx, nil
}

func (s *Store) AddTransaction(ctx context.Context, uid string, tx *domain.Transaction) (string, error) {
	ctx, span := tracer.Start(ctx, "SQLite.AddTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`, user_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tx.Description, string(tx.Type), tx.Amount.String(), tx.Date.UnixMilli(),
		tx.Category.Name, tx.Category.Icon, tx.PhotoURL, uid,
	)
	if err != nil {
		return "", storeError("transactions", err)
	}
	return id, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, uid string, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("transaction.id", tx.ID))

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions
		    SET description = ?, type = ?, amount = ?, date_ms = ?, category_name = ?, category_icon = ?, photo_url = ?
		  WHERE id = ? AND user_id = ?`,
		tx.Description, string(tx.Type), tx.Amount.String(), tx.Date.UnixMilli(),
		tx.Category.Name, tx.Category.Icon, tx.PhotoURL, tx.ID, uid,
	)
	if err != nil {
		return storeError("transactions", err)
	}
	return expectOne(res, "transaction", tx.ID)
}

func (s *Store) DeleteTransaction(ctx context.Context, uid, id string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("transaction.id", id))

	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, uid)
	if err != nil {
		return storeError("transactions", err)
	}
	return expectOne(res, "transaction", id)
}

func (s *Store) GetTransaction(ctx context.Context, uid, id string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid), attribute.String("transaction.id", id))

	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, uid)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	if err != nil {
		return nil, storeError("transactions", err)
	}
	return &tx, nil
}

func (s *Store) ListTransactionsBetween(ctx context.Context, uid string, from, to time.Time) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListTransactionsBetween")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		  WHERE user_id = ? AND date_ms >= ? AND date_ms <= ?
		  ORDER BY date_ms DESC, id`,
		uid, from.UnixMilli(), to.UnixMilli(),
	)
	if err != nil {
		return nil, storeError("transactions", err)
	}
	defer rows.Close()

	out := make([]domain.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, storeError("transactions", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("transactions", err)
	}
	span.SetAttributes(attribute.Int("transactions.count", len(out)))
	return out, nil
}

func (s *Store) OldestTransactionDate(ctx context.Context, uid string) (*time.Time, error) {
	ctx, span := tracer.Start(ctx, "SQLite.OldestTransactionDate")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	var ms sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MIN(date_ms) FROM transactions WHERE user_id = ?`, uid).Scan(&ms)
	if err != nil {
		return nil, storeError("transactions", err)
	}
	if !ms.Valid {
		return nil, nil
	}
	t := time.UnixMilli(ms.Int64).UTC()
	return &t, nil
}

// --- Users ---

func (s *Store) CreateUser(ctx context.Context, uid string, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, phone_number, photo_url, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email,
		    phone_number = excluded.phone_number, photo_url = excluded.photo_url`,
		uid, u.Name, u.Email, u.PhoneNumber, u.PhotoURL, time.Now().UnixMilli(),
	)
	if err != nil {
		return storeError("users", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	u := domain.User{ID: uid}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, email, phone_number, photo_url FROM users WHERE id = ?`, uid,
	).Scan(&u.Name, &u.Email, &u.PhoneNumber, &u.PhotoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "user", ID: uid}
	}
	if err != nil {
		return nil, storeError("users", err)
	}
	return &u, nil
}

func (s *Store) UpdateUser(ctx context.Context, uid string, u *domain.User) error {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, phone_number = ?, photo_url = ? WHERE id = ?`,
		u.Name, u.PhoneNumber, u.PhotoURL, uid,
	)
	if err != nil {
		return storeError("users", err)
	}
	return expectOne(res, "user", uid)
}

func (s *Store) DeleteUser(ctx context.Context, uid string) error {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", uid))

	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, uid); err != nil {
		return storeError("users", err)
	}
	return nil
}

func expectOne(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeError(resource+"s", err)
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}
