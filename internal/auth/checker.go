package auth

import "context"

var _ Checker = (*LoginChecker)(nil)
var _ Checker = (*LoginTestChecker)(nil)

// Checker tells whether a token belongs to a live admin session.
type Checker interface {
	IsLogged(ctx context.Context, token string) (bool, error)
}

// TokenHeader carries the admin session token on every request.
const TokenHeader = "X-Admin-Token"
