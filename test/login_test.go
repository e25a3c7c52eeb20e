//go:build integration_test || all_tests

package test

import (
	"context"
	"net/http"

	"github.com/2beens/engblog/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) TestLogin() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cases := map[string]struct {
		creds              auth.Credentials
		expectedStatusCode int
	}{
		"bad password": {
			creds:              auth.Credentials{Username: testUsername, Password: "bad-password"},
			expectedStatusCode: http.StatusUnauthorized,
		},
		"bad username": {
			creds:              auth.Credentials{Username: "someone", Password: testPassword},
			expectedStatusCode: http.StatusUnauthorized,
		},
		"empty password": {
			creds:              auth.Credentials{Username: testUsername},
			expectedStatusCode: http.StatusBadRequest,
		},
	}

	for name, tc := range cases {
		status, resp := s.do(ctx, t, http.MethodPost, "/a/login", "", tc.creds)
		assert.Equal(t, tc.expectedStatusCode, status, name)
		assert.False(t, resp.Success, name)
		assert.Empty(t, resp.Token, name)
	}
}

func (s *IntegrationTestSuite) TestLoginLogout() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	token := s.doLogin(ctx, t)

	// a valid session opens the admin listing
	status, _ := s.do(ctx, t, http.MethodGet, "/blogs?includeAll=true", token, nil)
	require.Equal(t, http.StatusOK, status)

	status, resp := s.do(ctx, t, http.MethodGet, "/a/logout", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)

	status, _ = s.do(ctx, t, http.MethodGet, "/blogs?includeAll=true", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.do(ctx, t, http.MethodGet, "/a/logout", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
