// Package external is the anti-corruption layer between the newsletter
// domain and third-party providers. It wraps the email transport behind the
// EmailProvider interface and enforces a circuit breaker on provider calls.
package external

import (
	"context"

	"forkfire/internal/types"
)

// EmailProvider is the opaque "send one email" operation the dispatch engine
// delegates to. Each call may fail independently; retry and timeout policy
// live inside the implementation, not in the dispatcher.
type EmailProvider interface {
	// Send transmits one pre-rendered email and returns the provider
	// message ID on success.
	Send(ctx context.Context, input types.SendInput) (string, error)
}
