package otodo

import (
	"context"
	"time"
)

// User identifies the account a session or credential belongs to.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// LoginResult is what the authority returns on a successful online login.
type LoginResult struct {
	User     User      `json:"user"`
	IssuedAt time.Time `json:"issued_at"`
}

// Authority is the client-side contract with the remote authority. The
// authority applies each op idempotently by op_id, resolves concurrent
// mutations by last-writer-wins on updated_at (a tie keeps the logged op),
// and always returns the complete current task collection, never deltas.
//
// Implementations may be unreachable for arbitrary periods; every method
// reports a plain error on transport failure and must leave no partial
// client-visible state behind.
type Authority interface {
	// Sync transmits the full pending outbox in one request and returns the
	// authoritative task collection after all ops were applied.
	Sync(ctx context.Context, clientID string, ops []OutboxEntry) ([]Task, error)

	// Ping is a lightweight connectivity check (no-op request).
	Ping(ctx context.Context) error

	// Login verifies credentials online and returns the account identity.
	Login(ctx context.Context, email, password string) (*LoginResult, error)
}
