package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("WALLETIFY_APP_DOMAIN", "")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAuthURLCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "auth-url", "--app-domain", "https://app.example", "--session-dir", dir)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "https://wiseapp.id/download?token="), out)
}

func TestCommandsRequireSignIn(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "ls", "--app-domain", "https://app.example", "--session-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did the user sign in")
}

func TestSTXTransferCommand_RejectsAmount(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "stx-transfer-url", "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7", "lots",
		"--app-domain", "https://app.example", "--session-dir", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid amount")
}

func TestCommandsRequireAppDomain(t *testing.T) {
	_, err := run(t, "auth-url", "--session-dir", t.TempDir())
	require.Error(t, err)
}

func TestSignInCommand_Args(t *testing.T) {
	_, err := run(t, "sign-in")
	require.Error(t, err)
}
