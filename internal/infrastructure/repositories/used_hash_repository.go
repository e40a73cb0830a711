package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dbank-service/dbank_service/internal/domain/entities"
	domainerrors "github.com/dbank-service/dbank_service/internal/domain/errors"
)

// UsedHashRepository records redeemed transaction hashes. The unique
// index on tx_hash is the authoritative replay guard: two concurrent
// redemptions of the same hash race on the insert and the loser gets
// a unique violation.
type UsedHashRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUsedHashRepository creates a new used hash repository
func NewUsedHashRepository(db *sql.DB, logger *zap.Logger) *UsedHashRepository {
	return &UsedHashRepository{
		db:     db,
		logger: logger,
	}
}

// MarkUsedTx records a hash as redeemed within an existing transaction.
// Returns ErrTransactionAlreadyUsed if the hash was already recorded.
func (r *UsedHashRepository) MarkUsedTx(ctx context.Context, tx *sql.Tx, record *entities.UsedTransactionHash) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO used_transaction_hashes (id, tx_hash, user_id, network, amount_usd, credits, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.ExecContext(ctx, query,
		record.ID,
		strings.ToLower(record.TxHash),
		record.UserID,
		string(record.Network),
		record.AmountUSD,
		record.Credits,
		record.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.ErrTransactionAlreadyUsed
		}
		r.logger.Error("Failed to mark hash as used", zap.Error(err), zap.String("tx_hash", record.TxHash))
		return fmt.Errorf("failed to mark hash as used: %w", err)
	}
	return nil
}

// IsUsed reports whether a hash has already been redeemed
func (r *UsedHashRepository) IsUsed(ctx context.Context, txHash string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM used_transaction_hashes WHERE tx_hash = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, strings.ToLower(txHash)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check used hash: %w", err)
	}
	return exists, nil
}
