package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/hotdeals/internal/auth"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "hotdeals "))
}

func TestTokenCommandIssuesValidToken(t *testing.T) {
	t.Setenv("HOTDEAL_JWT_SECRET", "cli-secret")

	out, err := run(t, "token", "admin")
	require.NoError(t, err)

	m, err := auth.NewJWTManager("cli-secret", 0)
	require.NoError(t, err)
	claims, err := m.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
}

func TestTokenCommandNeedsSecret(t *testing.T) {
	_, err := run(t, "token", "admin")
	assert.ErrorContains(t, err, "HOTDEAL_JWT_SECRET")
}

func TestTokenCommandNeedsSubject(t *testing.T) {
	_, err := run(t, "token")
	assert.Error(t, err)
}
