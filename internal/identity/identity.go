// Package identity resolves bearer credentials to marketplace users.
//
// It is deliberately thin: the Gateway owns login and token issuance;
// this package only answers "who is this token, and is the account
// usable" — the one-shot check the websocket handshake performs before
// any chat event is accepted.
package identity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Role distinguishes the two marketplace sides (plus back-office admins).
type Role string

const (
	RoleSeeker   Role = "seeker"
	RoleEmployer Role = "employer"
	RoleAdmin    Role = "admin"
)

// User is the resolved account behind a credential.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Status   string `json:"status"`
}

// Active reports whether the account may open connections and send events.
func (u *User) Active() bool { return u.Status == "active" }

// Sentinel errors returned by VerifyToken.
var (
	ErrInvalidToken    = fmt.Errorf("invalid or expired token")
	ErrInactiveAccount = fmt.Errorf("account is not active")
)

// TokenVerifier is the contract consumed by the websocket handshake.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*User, error)
}

// PgVerifier resolves tokens against the auth_tokens / users tables.
type PgVerifier struct {
	pool *pgxpool.Pool
}

// NewPgVerifier returns a verifier backed by the given pool.
func NewPgVerifier(pool *pgxpool.Pool) *PgVerifier {
	return &PgVerifier{pool: pool}
}

// VerifyToken resolves a bearer token to its user. It returns
// ErrInvalidToken for unknown or expired tokens and ErrInactiveAccount
// when the account exists but may not connect. There is no partial
// success: callers must reject the connection on any error.
func (v *PgVerifier) VerifyToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	var u User
	err := v.pool.QueryRow(ctx,
		`SELECT u.id, u.username, u.role, u.status
		 FROM auth_tokens t
		 JOIN users u ON u.id = t.user_id
		 WHERE t.token = $1 AND t.expires_at > NOW()`,
		token,
	).Scan(&u.ID, &u.Username, &u.Role, &u.Status)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if !u.Active() {
		return nil, ErrInactiveAccount
	}
	return &u, nil
}
