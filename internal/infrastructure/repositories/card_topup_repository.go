package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dbank-service/dbank_service/internal/domain/entities"
	domainerrors "github.com/dbank-service/dbank_service/internal/domain/errors"
)

// CardTopUpRepository tracks crypto-funded card top-ups. The unique
// index on tx_hash stops the same on-chain payment from funding a card
// more than once.
type CardTopUpRepository struct {
	db *sqlx.DB
}

// NewCardTopUpRepository creates a new card top-up repository
func NewCardTopUpRepository(db *sqlx.DB) *CardTopUpRepository {
	return &CardTopUpRepository{db: db}
}

// Create records a pending top-up. Returns ErrTransactionAlreadyUsed
// if the hash was already claimed.
func (r *CardTopUpRepository) Create(ctx context.Context, record *entities.CardTopUpRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	query := `
		INSERT INTO card_topup_requests (id, user_id, card_id, tx_hash, network, amount_usd, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		record.CardID,
		strings.ToLower(record.TxHash),
		string(record.Network),
		record.AmountUSD,
		string(record.Status),
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.ErrTransactionAlreadyUsed
		}
		return fmt.Errorf("create card top-up: %w", err)
	}
	return nil
}

// GetByHash returns the record holding a claimed hash
func (r *CardTopUpRepository) GetByHash(ctx context.Context, txHash string) (*entities.CardTopUpRecord, error) {
	query := `
		SELECT id, user_id, card_id, tx_hash, network, amount_usd, status, created_at, updated_at
		FROM card_topup_requests
		WHERE tx_hash = $1`

	var record entities.CardTopUpRecord
	if err := r.db.GetContext(ctx, &record, query, strings.ToLower(txHash)); err != nil {
		return nil, fmt.Errorf("get card top-up by hash: %w", err)
	}
	return &record, nil
}

// UpdateStatus transitions a top-up record
func (r *CardTopUpRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entities.CardTopUpStatus) error {
	query := `UPDATE card_topup_requests SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, string(status))
	if err != nil {
		return fmt.Errorf("update card top-up status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update card top-up status: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("card top-up %s not found", id)
	}
	return nil
}

// IsHashUsed reports whether a hash was already claimed for a top-up
func (r *CardTopUpRepository) IsHashUsed(ctx context.Context, txHash string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM card_topup_requests WHERE tx_hash = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, strings.ToLower(txHash)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check top-up hash: %w", err)
	}
	return exists, nil
}
