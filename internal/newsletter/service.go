// Package newsletter implements the subscription directory and the bulk
// dispatch engine for the Fork & Fire newsletter: idempotent subscribe and
// unsubscribe with a best-effort mirror onto the registered-account flag,
// per-recipient template rendering, and a concurrent fan-out send with
// partial-failure accounting.
package newsletter

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"forkfire/internal/types"
)

// emailPattern is the shape check applied to subscription emails before any
// storage round trip. Deliberately permissive; real validation happens when
// the provider accepts or bounces the address.
var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)

// SubscriptionStore is the persistence contract for subscription records.
// Implemented by db.SubscriptionRepository.
type SubscriptionStore interface {
	Create(ctx context.Context, email string) (*types.Subscription, error)
	GetByEmail(ctx context.Context, email string) (*types.Subscription, error)
	Delete(ctx context.Context, email string) error
}

// UserRegistry is the collaborator contract to the registered-account store.
// Implemented by db.UserRepository.
type UserRegistry interface {
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	SetNewsletterOptIn(ctx context.Context, email string, optIn bool) error
}

// Service owns the subscription state machine and its loose synchronization
// with the account registry. Operations are sequential per call; concurrent
// callers are safe because uniqueness is enforced by the storage layer's
// unique index, with duplicate-key races absorbed into the idempotent
// already-subscribed outcome.
type Service struct {
	subs   SubscriptionStore
	users  UserRegistry
	logger *slog.Logger
}

// NewService creates a subscription Service.
func NewService(subs SubscriptionStore, users UserRegistry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		subs:   subs,
		users:  users,
		logger: logger,
	}
}

// NormalizeEmail lower-cases and trims an email address. All directory
// lookups and writes use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Subscribe adds an email to the newsletter directory.
//
// A second subscribe for the same (case-insensitive) email is not an error:
// it returns OutcomeAlreadySubscribed so the caller can confirm the
// subscription without creating a duplicate or leaking existence through an
// error response. A duplicate-key race detected by storage is folded into
// the same outcome.
//
// After a new record is created, the registered-account mirror runs: if an
// account exists for the email and its newsletter flag is off, the flag is
// set. A subscription with no matching account is valid and needs no
// further work. Mirror failures are logged, not surfaced; the directory is
// the operative record and the flag is a best-effort reflection of it.
func (s *Service) Subscribe(ctx context.Context, email string) (types.SubscribeOutcome, error) {
	if strings.TrimSpace(email) == "" {
		return 0, types.NewAppError(types.ErrCodeValidationMissingField, "Email is required.", nil)
	}

	normalized := NormalizeEmail(email)
	if !emailPattern.MatchString(normalized) {
		return 0, types.NewAppError(types.ErrCodeValidationInvalidEmail, "Please provide a valid email address.", nil)
	}

	existing, err := s.subs.GetByEmail(ctx, normalized)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return types.OutcomeAlreadySubscribed, nil
	}

	if _, err := s.subs.Create(ctx, normalized); err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeConflictAlreadySubscribed {
			// A concurrent subscribe won the insert race between our lookup
			// and create. Same terminal state, same outcome.
			return types.OutcomeAlreadySubscribed, nil
		}
		return 0, err
	}

	s.mirrorOptIn(ctx, normalized)

	return types.OutcomeSubscribed, nil
}

// Unsubscribe removes an email from the newsletter directory and
// unconditionally clears the registered-account flag.
//
// It returns the same success result whether or not a record existed. This
// is deliberate: the endpoint is public, and a distinguishable "was never
// subscribed" response would let a caller enumerate the directory.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return types.NewAppError(types.ErrCodeValidationMissingField, "Email is required.", nil)
	}

	normalized := NormalizeEmail(email)

	if err := s.subs.Delete(ctx, normalized); err != nil {
		return err
	}

	// Clear the flag regardless of prior state so "not subscribed" is a
	// safe terminal state reachable from anywhere.
	if err := s.users.SetNewsletterOptIn(ctx, normalized, false); err != nil {
		s.logger.Warn("failed to clear newsletter flag on account",
			"email", RedactEmail(normalized),
			"error", err.Error(),
		)
	}

	return nil
}

// mirrorOptIn sets the account newsletter flag after a successful subscribe,
// only when an account exists and its flag is currently off.
func (s *Service) mirrorOptIn(ctx context.Context, email string) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeNotFoundUser {
			return
		}
		s.logger.Warn("failed to look up account for newsletter mirror",
			"email", RedactEmail(email),
			"error", err.Error(),
		)
		return
	}

	if user.Newsletter {
		return
	}

	if err := s.users.SetNewsletterOptIn(ctx, email, true); err != nil {
		s.logger.Warn("failed to set newsletter flag on account",
			"email", RedactEmail(email),
			"error", err.Error(),
		)
	}
}
