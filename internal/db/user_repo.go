package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"forkfire/internal/types"
)

// UserRepository is the newsletter service's read/update projection of the
// users table. The account subsystem owns the full user lifecycle; this
// repository only resolves display names and toggles the newsletter flag.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a UserRepository backed by the given database
// connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail retrieves a registered account by email.
// Returns an AppError with code "not_found_user" if no account exists.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, email, name, newsletter
		 FROM users
		 WHERE email = $1`,
		email,
	)

	var u types.User
	var name *string
	if err := row.Scan(&u.ID, &u.Email, &name, &u.Newsletter); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve user by email", err)
	}
	if name != nil {
		u.Name = *name
	}

	return &u, nil
}

// ListNamesByEmail resolves display names for the given emails in a single
// query, returning an email -> name mapping. Emails with no registered
// account are simply absent from the map.
func (r *UserRepository) ListNamesByEmail(ctx context.Context, emails []string) (map[string]string, error) {
	if len(emails) == 0 {
		return map[string]string{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT email, name FROM users WHERE email = ANY($1)`,
		emails,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to resolve subscriber names", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var email string
		var name *string
		if err := rows.Scan(&email, &name); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user row", err)
		}
		if name != nil && *name != "" {
			names[email] = *name
		}
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate user rows", err)
	}

	return names, nil
}

// SetNewsletterOptIn sets the newsletter flag on any account with the given
// email. Matching zero rows is not an error: the unsubscribe flow clears the
// flag unconditionally, whether or not an account exists.
func (r *UserRepository) SetNewsletterOptIn(ctx context.Context, email string, optIn bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET newsletter = $2 WHERE email = $1`,
		email,
		optIn,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update newsletter flag", err)
	}
	return nil
}
