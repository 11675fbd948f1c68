package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffeemasters/authcore/core"
)

func TestWebAuthnRegistrationCeremony(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	fake := newFakeAuthenticator(t, testRPID)
	account := registerPasskey(t, stack, fake, "ana@example.com", "Ana")

	assert.Equal(t, "ana@example.com", account.Email)
	assert.True(t, stack.events.has(core.EventRegistration))

	// The passkey became the account's first factor; no password was set.
	stored, err := stack.accounts.FindAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasPassword())
	assert.True(t, stored.HasCredentials())
}

func TestWebAuthnRegistrationExcludesExistingCredentials(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	fake := newFakeAuthenticator(t, testRPID)
	registerPasskey(t, stack, fake, "ana@example.com", "Ana")

	options, err := stack.webauthn.BeginRegistration(ctx, "ana@example.com", "Ana")
	require.NoError(t, err)

	require.Len(t, options.Response.CredentialExcludeList, 1)
	assert.EqualValues(t, fake.CredentialID, options.Response.CredentialExcludeList[0].CredentialID)
}

func TestWebAuthnRegistrationDuplicateCredential(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	fake := newFakeAuthenticator(t, testRPID)
	registerPasskey(t, stack, fake, "ana@example.com", "Ana")

	// The same authenticator attests again under a fresh challenge, this
	// time for a different account.
	options, err := stack.webauthn.BeginRegistration(ctx, "bob@example.com", "Bob")
	require.NoError(t, err)

	response := attest(t, fake, options.Response.Challenge, testOrigin)
	_, _, err = stack.webauthn.FinishRegistration(ctx, response)
	assert.ErrorIs(t, err, core.ErrCredentialExists)
}

func TestWebAuthnLoginCeremony(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	fake := newFakeAuthenticator(t, testRPID)
	account := registerPasskey(t, stack, fake, "ana@example.com", "Ana")

	options, err := stack.webauthn.BeginLogin(ctx, "ana@example.com")
	require.NoError(t, err)

	response := assertion(t, fake, options.Response.Challenge, []byte(account.ID), testOrigin)
	got, err := stack.webauthn.FinishLogin(ctx, response)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)

	// The stored signature counter advanced.
	_, cred, err := stack.accounts.FindAccountByCredential(ctx, fake.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cred.SignCount)
}

func TestWebAuthnDiscoverableLogin(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	fake := newFakeAuthenticator(t, testRPID)
	account := registerPasskey(t, stack, fake, "ana@example.com", "Ana")

	// No identity supplied: the ceremony relies on the credential reporting
	// its own user handle.
	options, err := stack.webauthn.BeginLogin(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, options.Response.AllowedCredentials)

	response := assertion(t, fake, options.Response.Challenge, []byte(account.ID), testOrigin)
	got, err := stack.webauthn.FinishLogin(ctx, response)
	require.NoError(t, err)
	assert.Equal(t, account.Email, got.Email)
}

func TestWebAuthnLoginUnknownIdentity(t *testing.T) {
	stack := newTestStack(t)

	_, err := stack.webauthn.BeginLogin(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestWebAuthnLoginAccountWithoutPasskeys(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	_, err := stack.auth.Register(ctx, "Ana", "ana@example.com", "Secret123")
	require.NoError(t, err)

	_, err = stack.webauthn.BeginLogin(ctx, "ana@example.com")
	assert.ErrorIs(t, err, core.ErrUnknownCredential)
}

func TestWebAuthnChallengeSingleUse(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	fake := newFakeAuthenticator(t, testRPID)
	account := registerPasskey(t, stack, fake, "ana@example.com", "Ana")

	options, err := stack.webauthn.BeginLogin(ctx, "ana@example.com")
	require.NoError(t, err)

	response := assertion(t, fake, options.Response.Challenge, []byte(account.ID), testOrigin)
	_, err = stack.webauthn.FinishLogin(ctx, response)
	require.NoError(t, err)

	// Replaying the identical response dies at the ledger.
	_, err = stack.webauthn.FinishLogin(ctx, response)
	assert.ErrorIs(t, err, core.ErrChallengeUsed)
}

func TestWebAuthnChallengeConsumedOnFailure(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	fake := newFakeAuthenticator(t, testRPID)
	account := registerPasskey(t, stack, fake, "ana@example.com", "Ana")

	options, err := stack.webauthn.BeginLogin(ctx, "ana@example.com")
	require.NoError(t, err)

	// First attempt fails verification on a bad origin, but the challenge
	// is still spent.
	bad := assertion(t, fake, options.Response.Challenge, []byte(account.ID), "http://evil.example")
	_, err = stack.webauthn.FinishLogin(ctx, bad)
	assert.ErrorIs(t, err, core.ErrOriginMismatch)
	assert.True(t, stack.events.has(core.EventOriginMismatch))

	good := assertion(t, fake, options.Response.Challenge, []byte(account.ID), testOrigin)
	_, err = stack.webauthn.FinishLogin(ctx, good)
	assert.ErrorIs(t, err, core.ErrChallengeUsed)
}

func TestWebAuthnChallengeExpires(t *testing.T) {
	stack := newTestStackTTL(t, 30*time.Millisecond)
	ctx := context.Background()

	fake := newFakeAuthenticator(t, testRPID)
	account := registerPasskey(t, stack, fake, "ana@example.com", "Ana")

	options, err := stack.webauthn.BeginLogin(ctx, "ana@example.com")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	response := assertion(t, fake, options.Response.Challenge, []byte(account.ID), testOrigin)
	_, err = stack.webauthn.FinishLogin(ctx, response)
	assert.ErrorIs(t, err, core.ErrChallengeExpired)
}

func TestWebAuthnKindMismatch(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	fake := newFakeAuthenticator(t, testRPID)
	account := registerPasskey(t, stack, fake, "ana@example.com", "Ana")

	// A registration challenge presented to the login verifier reads as
	// never issued.
	options, err := stack.webauthn.BeginRegistration(ctx, "ana@example.com", "Ana")
	require.NoError(t, err)

	response := assertion(t, fake, options.Response.Challenge, []byte(account.ID), testOrigin)
	_, err = stack.webauthn.FinishLogin(ctx, response)
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestWebAuthnCloneDetection(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	fake := newFakeAuthenticator(t, testRPID)
	account := registerPasskey(t, stack, fake, "ana@example.com", "Ana")

	options, err := stack.webauthn.BeginLogin(ctx, "ana@example.com")
	require.NoError(t, err)
	response := assertion(t, fake, options.Response.Challenge, []byte(account.ID), testOrigin)
	_, err = stack.webauthn.FinishLogin(ctx, response)
	require.NoError(t, err)

	// A cloned authenticator replays the counter it was copied at, so its
	// next assertion does not exceed the stored value.
	fake.SignCount = 0

	options, err = stack.webauthn.BeginLogin(ctx, "ana@example.com")
	require.NoError(t, err)
	response = assertion(t, fake, options.Response.Challenge, []byte(account.ID), testOrigin)
	_, err = stack.webauthn.FinishLogin(ctx, response)
	assert.ErrorIs(t, err, core.ErrPossibleClone)
	assert.True(t, stack.events.has(core.EventCloneDetected))

	// The stored counter was not poisoned by the suspect assertion.
	_, cred, err := stack.accounts.FindAccountByCredential(ctx, fake.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), cred.SignCount)
}

func TestWebAuthnChallengeBoundToAccount(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	anaKey := newFakeAuthenticator(t, testRPID)
	registerPasskey(t, stack, anaKey, "ana@example.com", "Ana")

	bobKey := newFakeAuthenticator(t, testRPID)
	bob := registerPasskey(t, stack, bobKey, "bob@example.com", "Bob")

	// A challenge issued for Ana must not verify Bob's credential.
	options, err := stack.webauthn.BeginLogin(ctx, "ana@example.com")
	require.NoError(t, err)

	response := assertion(t, bobKey, options.Response.Challenge, []byte(bob.ID), testOrigin)
	_, err = stack.webauthn.FinishLogin(ctx, response)
	assert.ErrorIs(t, err, core.ErrUnknownCredential)
}
