package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"forkfire/internal/types"
)

// SubscriptionRepository provides data access for the
// newsletter_subscriptions table. The table carries a unique index on the
// normalized email column; that index, not application locking, is what
// enforces the at-most-one-record-per-email invariant under concurrent
// subscribes.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository creates a SubscriptionRepository backed by the
// given database connection (pool or transaction).
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create inserts a new subscription record for the given normalized email.
// On a duplicate-key violation it returns an AppError with code
// "conflict_already_subscribed"; the caller treats that as the idempotent
// already-subscribed outcome, never as a failure.
func (r *SubscriptionRepository) Create(ctx context.Context, email string) (*types.Subscription, error) {
	sub := &types.Subscription{
		ID:    uuid.NewString(),
		Email: email,
	}

	row := r.db.QueryRow(ctx,
		`INSERT INTO newsletter_subscriptions (id, email)
		 VALUES ($1, $2)
		 RETURNING subscribed_at`,
		sub.ID,
		sub.Email,
	)

	if err := row.Scan(&sub.SubscribedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, types.NewAppError(
				types.ErrCodeConflictAlreadySubscribed,
				"email is already subscribed",
				err,
			)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create subscription", err)
	}

	return sub, nil
}

// GetByEmail retrieves the subscription record for a normalized email.
// Returns (nil, nil) when no record exists; absence is a normal outcome for
// the subscribe flow, not an error.
func (r *SubscriptionRepository) GetByEmail(ctx context.Context, email string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, email, subscribed_at
		 FROM newsletter_subscriptions
		 WHERE email = $1`,
		email,
	)

	var sub types.Subscription
	if err := row.Scan(&sub.ID, &sub.Email, &sub.SubscribedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to look up subscription", err)
	}

	return &sub, nil
}

// Delete removes any subscription record for the normalized email. Deleting
// a non-existent record is not an error; the unsubscribe contract promises
// an identical outcome either way.
func (r *SubscriptionRepository) Delete(ctx context.Context, email string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM newsletter_subscriptions WHERE email = $1`,
		email,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete subscription", err)
	}
	return nil
}

// ListEmails returns the full set of currently subscribed emails. Used only
// by the dispatch engine; order is not significant.
func (r *SubscriptionRepository) ListEmails(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT email FROM newsletter_subscriptions`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list subscribers", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan subscriber row", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate subscriber rows", err)
	}

	return emails, nil
}
