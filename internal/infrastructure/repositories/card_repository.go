package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/dbank-service/dbank_service/internal/domain/entities"
	domainerrors "github.com/dbank-service/dbank_service/internal/domain/errors"
)

// CardRepository handles card persistence
type CardRepository struct {
	db *sqlx.DB
}

// NewCardRepository creates a new card repository
func NewCardRepository(db *sqlx.DB) *CardRepository {
	return &CardRepository{db: db}
}

// Create stores a newly issued card
func (r *CardRepository) Create(ctx context.Context, card *entities.Card) error {
	query := `
		INSERT INTO cards (id, user_id, issuer_card_id, status, last_4, expiry, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	now := time.Now()
	card.CreatedAt = now
	card.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		card.ID,
		card.UserID,
		card.IssuerCardID,
		string(card.Status),
		card.Last4,
		card.Expiry,
		card.Balance,
		card.Currency,
		card.CreatedAt,
		card.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("card already exists: %w", err)
		}
		return fmt.Errorf("create card: %w", err)
	}
	return nil
}

// GetByID retrieves a card owned by the given user. Ownership is part
// of the query so one user can never read another user's card.
func (r *CardRepository) GetByID(ctx context.Context, cardID, userID uuid.UUID) (*entities.Card, error) {
	query := `
		SELECT id, user_id, issuer_card_id, status, last_4, expiry, balance, currency, created_at, updated_at
		FROM cards
		WHERE id = $1 AND user_id = $2`

	var card entities.Card
	err := r.db.GetContext(ctx, &card, query, cardID, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrCardNotFound
		}
		return nil, fmt.Errorf("get card: %w", err)
	}
	return &card, nil
}

// ListByUser retrieves all cards for a user
func (r *CardRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Card, error) {
	query := `
		SELECT id, user_id, issuer_card_id, status, last_4, expiry, balance, currency, created_at, updated_at
		FROM cards
		WHERE user_id = $1
		ORDER BY created_at DESC`

	var cards []*entities.Card
	if err := r.db.SelectContext(ctx, &cards, query, userID); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// UpdateStatus sets the card status
func (r *CardRepository) UpdateStatus(ctx context.Context, cardID uuid.UUID, status entities.CardStatus) error {
	query := `UPDATE cards SET status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, cardID, string(status))
	if err != nil {
		return fmt.Errorf("update card status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update card status: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrCardNotFound
	}
	return nil
}

// UpdateBalance sets the card balance to the issuer's reported value
func (r *CardRepository) UpdateBalance(ctx context.Context, cardID uuid.UUID, balance decimal.Decimal) error {
	query := `UPDATE cards SET balance = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, cardID, balance)
	if err != nil {
		return fmt.Errorf("update card balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update card balance: %w", err)
	}
	if rows == 0 {
		return domainerrors.ErrCardNotFound
	}
	return nil
}
