package auth

import "context"

// LoginTestChecker is an in-memory Checker for wiring tests and local runs without redis.
type LoginTestChecker struct {
	LoggedSessions map[string]bool
}

func NewLoginTestChecker(tokens ...string) *LoginTestChecker {
	c := &LoginTestChecker{
		LoggedSessions: map[string]bool{},
	}
	for _, token := range tokens {
		c.LoggedSessions[token] = true
	}
	return c
}

func (c *LoginTestChecker) IsLogged(_ context.Context, token string) (bool, error) {
	return c.LoggedSessions[token], nil
}
