package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/dbank-service/dbank_service/internal/domain/entities"
	domainerrors "github.com/dbank-service/dbank_service/internal/domain/errors"
)

// PreloadRepository manages the pre-funded card inventory
type PreloadRepository struct {
	db *sqlx.DB
}

// NewPreloadRepository creates a new preload repository
func NewPreloadRepository(db *sqlx.DB) *PreloadRepository {
	return &PreloadRepository{db: db}
}

// ListAvailable returns cards still in inventory
func (r *PreloadRepository) ListAvailable(ctx context.Context) ([]*entities.PreloadCard, error) {
	query := `
		SELECT id, issuer_card_id, last_4, expiry, balance_usd, price_usd, status, sold_to_user_id, sold_at, created_at
		FROM preload_cards
		WHERE status = 'available'
		ORDER BY created_at ASC`

	var cards []*entities.PreloadCard
	if err := r.db.SelectContext(ctx, &cards, query); err != nil {
		return nil, fmt.Errorf("list preload cards: %w", err)
	}
	return cards, nil
}

// NextAvailable returns the oldest available card
func (r *PreloadRepository) NextAvailable(ctx context.Context) (*entities.PreloadCard, error) {
	query := `
		SELECT id, issuer_card_id, last_4, expiry, balance_usd, price_usd, status, sold_to_user_id, sold_at, created_at
		FROM preload_cards
		WHERE status = 'available'
		ORDER BY created_at ASC
		LIMIT 1`

	var card entities.PreloadCard
	err := r.db.GetContext(ctx, &card, query)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrNoPreloadCards
		}
		return nil, fmt.Errorf("get preload card: %w", err)
	}
	return &card, nil
}

// MarkSoldTx transitions a card from available to sold within an
// existing transaction. The status guard in the WHERE clause loses the
// race cleanly when two buyers target the same card.
func (r *PreloadRepository) MarkSoldTx(ctx context.Context, tx *sql.Tx, cardID, userID uuid.UUID) error {
	query := `
		UPDATE preload_cards
		SET status = 'sold', sold_to_user_id = $2, sold_at = NOW()
		WHERE id = $1 AND status = 'available'`

	result, err := tx.ExecContext(ctx, query, cardID, userID)
	if err != nil {
		return fmt.Errorf("mark preload card sold: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark preload card sold: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrNoPreloadCards
	}
	return nil
}

// RecordPurchaseTx records a completed sale within an existing
// transaction. Returns ErrTransactionAlreadyUsed when the payment hash
// was already redeemed.
func (r *PreloadRepository) RecordPurchaseTx(ctx context.Context, tx *sql.Tx, purchase *entities.PreloadPurchase) error {
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	if purchase.CreatedAt.IsZero() {
		purchase.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO preload_card_purchases (id, user_id, preload_card_id, tx_hash, amount_usd, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := tx.ExecContext(ctx, query,
		purchase.ID,
		purchase.UserID,
		purchase.PreloadCardID,
		strings.ToLower(purchase.TxHash),
		purchase.AmountUSD,
		purchase.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domainerrors.ErrTransactionAlreadyUsed
		}
		return fmt.Errorf("record preload purchase: %w", err)
	}
	return nil
}
