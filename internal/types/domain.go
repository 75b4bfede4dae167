// Package types defines the domain model and shared contracts for the
// Fork & Fire newsletter service: subscription records, the registered-user
// projection, dispatch reporting, and the application error taxonomy.
package types

import "time"

// Subscription is one newsletter subscription record. The email is stored in
// normalized form (trimmed, lower-cased) and is unique across all records.
// Records are created by subscribe and deleted by unsubscribe; they are never
// otherwise mutated.
type Subscription struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// User is the projection of a registered site account that the newsletter
// subsystem cares about. Accounts are owned by the account subsystem; this
// service only reads names and toggles the newsletter opt-in flag.
//
// The subscription directory and the Newsletter flag are two independent
// representations of membership. A Subscription can exist without a User and
// a User's flag can be set without a Subscription; the subscribe/unsubscribe
// flows keep them loosely mirrored, not transactionally consistent.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Newsletter bool   `json:"newsletter"`
}

// SubscribeOutcome distinguishes a first-time subscription from the
// idempotent confirmation path. Both are success outcomes; the handler uses
// the distinction only to choose between 201 and 200.
type SubscribeOutcome int

const (
	// OutcomeSubscribed means a new subscription record was created.
	OutcomeSubscribed SubscribeOutcome = iota
	// OutcomeAlreadySubscribed means a record already existed (including the
	// case where a concurrent subscribe won a duplicate-key race).
	OutcomeAlreadySubscribed
)

// DispatchReport is the aggregate outcome of one bulk newsletter send.
// Per-recipient failure reasons are logged during the fan-out and are not
// carried in the report.
type DispatchReport struct {
	Total     int `json:"total"`
	Successes int `json:"successes"`
	Failures  int `json:"failures"`
}

// Complete reports whether every recipient was sent to successfully.
// Anything less is a partial outcome, including zero successes: the batch
// ran, it simply delivered to fewer recipients than it covered.
func (r DispatchReport) Complete() bool {
	return r.Failures == 0
}

// SenderIdentity is the From identity used for outbound email.
type SenderIdentity struct {
	Address string
	Name    string
}

// SendInput carries one pre-rendered email to the provider.
type SendInput struct {
	To       string
	From     SenderIdentity
	Subject  string
	BodyHTML string
	// ReferenceID tags the message for correlation in provider logs.
	ReferenceID string
}
