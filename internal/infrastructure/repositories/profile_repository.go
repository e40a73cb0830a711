package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dbank-service/dbank_service/internal/domain/entities"
	domainerrors "github.com/dbank-service/dbank_service/internal/domain/errors"
)

// ProfileRepository handles profile persistence using PostgreSQL
type ProfileRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sql.DB, logger *zap.Logger) *ProfileRepository {
	return &ProfileRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new profile with a zero credit balance
func (r *ProfileRepository) Create(ctx context.Context, profile *entities.Profile) error {
	query := `
		INSERT INTO profiles (id, user_id, email, credits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		profile.ID,
		profile.UserID,
		profile.Email,
		profile.Credits,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("profile already exists: %w", err)
		}
		r.logger.Error("Failed to create profile", zap.Error(err), zap.String("user_id", profile.UserID.String()))
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetByUserID retrieves a profile by user ID
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*entities.Profile, error) {
	query := `
		SELECT id, user_id, email, credits, created_at, updated_at
		FROM profiles
		WHERE user_id = $1`

	profile := &entities.Profile{}
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.ID,
		&profile.UserID,
		&profile.Email,
		&profile.Credits,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// AddCredits atomically increases a user's balance and returns the new
// total. Amount must be positive.
func (r *ProfileRepository) AddCredits(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	return r.addCredits(ctx, r.db, userID, amount)
}

// AddCreditsTx is AddCredits within an existing transaction
func (r *ProfileRepository) AddCreditsTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64) (int64, error) {
	return r.addCredits(ctx, tx, userID, amount)
}

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (r *ProfileRepository) addCredits(ctx context.Context, q execQuerier, userID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %d", amount)
	}

	query := `
		UPDATE profiles
		SET credits = credits + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING credits`

	var newBalance int64
	err := q.QueryRowContext(ctx, query, userID, amount).Scan(&newBalance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, domainerrors.ErrProfileNotFound
		}
		return 0, fmt.Errorf("failed to add credits: %w", err)
	}
	return newBalance, nil
}

// SpendCredits atomically decreases a user's balance. The balance guard
// in the WHERE clause makes concurrent overspends impossible: the row
// only updates when the balance still covers the amount.
func (r *ProfileRepository) SpendCredits(ctx context.Context, userID uuid.UUID, amount int64) (int64, error) {
	return r.spendCredits(ctx, r.db, userID, amount)
}

// SpendCreditsTx is SpendCredits within an existing transaction
func (r *ProfileRepository) SpendCreditsTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64) (int64, error) {
	return r.spendCredits(ctx, tx, userID, amount)
}

func (r *ProfileRepository) spendCredits(ctx context.Context, q execQuerier, userID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive, got %d", amount)
	}

	query := `
		UPDATE profiles
		SET credits = credits - $2, updated_at = NOW()
		WHERE user_id = $1 AND credits >= $2
		RETURNING credits`

	var newBalance int64
	err := q.QueryRowContext(ctx, query, userID, amount).Scan(&newBalance)
	if err != nil {
		if err == sql.ErrNoRows {
			// Either the profile is missing or the balance guard failed.
			if _, getErr := r.GetByUserID(ctx, userID); getErr != nil {
				return 0, getErr
			}
			return 0, domainerrors.ErrInsufficientCredits
		}
		return 0, fmt.Errorf("failed to spend credits: %w", err)
	}
	return newBalance, nil
}
