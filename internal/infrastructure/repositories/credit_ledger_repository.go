package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dbank-service/dbank_service/internal/domain/entities"
)

// CreditLedgerRepository handles the append-only credit transaction log
type CreditLedgerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCreditLedgerRepository creates a new credit ledger repository
func NewCreditLedgerRepository(db *sql.DB, logger *zap.Logger) *CreditLedgerRepository {
	return &CreditLedgerRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes a ledger entry
func (r *CreditLedgerRepository) Append(ctx context.Context, entry *entities.CreditTransaction) error {
	return r.append(ctx, r.db, entry)
}

// AppendTx writes a ledger entry within an existing transaction
func (r *CreditLedgerRepository) AppendTx(ctx context.Context, tx *sql.Tx, entry *entities.CreditTransaction) error {
	return r.append(ctx, tx, entry)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *CreditLedgerRepository) append(ctx context.Context, q execer, entry *entities.CreditTransaction) error {
	if !entry.Type.IsValid() {
		return fmt.Errorf("invalid transaction type: %s", entry.Type)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO credit_transactions (id, user_id, type, amount, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := q.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		string(entry.Type),
		entry.Amount,
		entry.Description,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append ledger entry",
			zap.Error(err),
			zap.String("user_id", entry.UserID.String()),
			zap.String("type", string(entry.Type)))
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// ListByUser returns the most recent ledger entries for a user
func (r *CreditLedgerRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, user_id, type, amount, description, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*entities.CreditTransaction
	for rows.Next() {
		entry := &entities.CreditTransaction{}
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Type,
			&entry.Amount,
			&entry.Description,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}

// HashMentioned reports whether a transaction hash appears in any ledger
// entry description. Older deposits recorded the hash only in the
// description, so this backstops the used-hash table during replay checks.
func (r *CreditLedgerRepository) HashMentioned(ctx context.Context, txHash string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM credit_transactions
			WHERE type = 'deposit' AND description LIKE '%' || $1 || '%'
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, txHash).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to scan ledger for hash: %w", err)
	}
	return exists, nil
}

// SumByUser returns the signed sum of all ledger entries for a user.
// Used by reconciliation checks against the profile balance.
func (r *CreditLedgerRepository) SumByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM credit_transactions
		WHERE user_id = $1`

	var sum int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	return sum, nil
}
