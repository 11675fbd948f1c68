package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coffeemasters/authcore/adapters/hasher"
	"github.com/coffeemasters/authcore/adapters/ledger"
	"github.com/coffeemasters/authcore/adapters/sessions"
	"github.com/coffeemasters/authcore/adapters/store"
	"github.com/coffeemasters/authcore/adapters/tokenizer"
	"github.com/coffeemasters/authcore/core"
	"github.com/coffeemasters/authcore/ports"
)

const (
	testRPID   = "localhost"
	testRPName = "Coffee Masters"
	testOrigin = "http://localhost:5050"
)

// capturePublisher records audit events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []core.SecurityEvent
}

func (p *capturePublisher) PublishSecurityEvent(ctx context.Context, event core.SecurityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) has(kind string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

type testStack struct {
	auth     *AuthService
	webauthn *WebAuthnService
	accounts ports.AccountStore
	events   *capturePublisher
}

func newTestStack(t *testing.T) *testStack {
	return newTestStackTTL(t, 0)
}

func newTestStackTTL(t *testing.T, challengeTTL time.Duration) *testStack {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	accounts := store.NewMemoryAccountStore()
	events := &capturePublisher{}

	auth := NewAuthService(
		accounts,
		sessions.NewMemorySessionStore(),
		tokenizer.NewJWTTokenizer(key),
		hasher.NewBcryptHasherWithCost(bcrypt.MinCost),
		events,
	)

	webauthnSvc, err := NewWebAuthnService(
		WebAuthnConfig{
			RPID:         testRPID,
			RPName:       testRPName,
			RPOrigins:    []string{testOrigin},
			ChallengeTTL: challengeTTL,
		},
		accounts,
		ledger.NewMemoryChallengeLedger(),
		events,
	)
	require.NoError(t, err)

	return &testStack{
		auth:     auth,
		webauthn: webauthnSvc,
		accounts: accounts,
		events:   events,
	}
}

func newFakeAuthenticator(t *testing.T, rpID string) *MockAuthenticator {
	t.Helper()
	fake, err := NewMockAuthenticator(rpID)
	require.NoError(t, err)
	return fake
}

func attest(t *testing.T, fake *MockAuthenticator, challenge []byte, origin string) *protocol.ParsedCredentialCreationData {
	t.Helper()
	response, err := fake.Attest(challenge, origin)
	require.NoError(t, err)
	return response
}

func assertion(t *testing.T, fake *MockAuthenticator, challenge, userHandle []byte, origin string) *protocol.ParsedCredentialAssertionData {
	t.Helper()
	response, err := fake.Assert(challenge, userHandle, origin)
	require.NoError(t, err)
	return response
}

// registerPasskey runs a full registration ceremony for the authenticator
// and returns the owning account.
func registerPasskey(t *testing.T, stack *testStack, fake *MockAuthenticator, email, name string) *core.Account {
	t.Helper()

	options, err := stack.webauthn.BeginRegistration(context.Background(), email, name)
	require.NoError(t, err)

	response := attest(t, fake, options.Response.Challenge, testOrigin)
	account, cred, err := stack.webauthn.FinishRegistration(context.Background(), response)
	require.NoError(t, err)
	require.Equal(t, fake.CredentialID, cred.ID)

	return account
}
