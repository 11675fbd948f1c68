package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/coffeemasters/authcore/core"
	"github.com/coffeemasters/authcore/ports"
)

// DefaultSessionTTL bounds how long an issued session resolves.
const DefaultSessionTTL = 24 * time.Hour

// AuthService handles account registration, password authentication, factor
// negotiation, and session lifecycle.
type AuthService struct {
	accounts  ports.AccountStore
	sessions  ports.SessionStore
	tokenizer ports.Tokenizer
	hasher    ports.PasswordHasher
	eventPub  ports.EventPublisher
	logger    *slog.Logger

	sessionTTL time.Duration
}

// NewAuthService creates a new authentication service. eventPub may be nil
// when no audit stream is configured.
func NewAuthService(
	accounts ports.AccountStore,
	sessions ports.SessionStore,
	tokenizer ports.Tokenizer,
	hasher ports.PasswordHasher,
	eventPub ports.EventPublisher,
) *AuthService {
	return &AuthService{
		accounts:   accounts,
		sessions:   sessions,
		tokenizer:  tokenizer,
		hasher:     hasher,
		eventPub:   eventPub,
		logger:     slog.Default(),
		sessionTTL: DefaultSessionTTL,
	}
}

// Register creates a new account with a password. The plaintext is hashed
// immediately and never stored or logged.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*core.Account, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &core.Account{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.publish(ctx, core.SecurityEvent{
		Kind:  core.EventRegistration,
		Email: email,
		At:    time.Now().UTC(),
	})

	return account, nil
}

// PasswordLogin verifies an email/password pair. Every failure is
// core.ErrInvalidCredentials: a missing account still pays for a hash
// comparison so the caller cannot tell it apart from a wrong password.
func (s *AuthService) PasswordLogin(ctx context.Context, email, password string) (*core.Account, error) {
	account, err := s.accounts.FindAccount(ctx, email)
	if err != nil {
		s.hasher.Verify(password, nil)
		return nil, core.ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, core.ErrInvalidCredentials
	}

	s.publish(ctx, core.SecurityEvent{
		Kind:   core.EventLogin,
		Email:  email,
		Detail: "password",
		At:     time.Now().UTC(),
	})

	return account, nil
}

// AuthOptions reports which login factors to offer for an identity. The
// response shape never varies: an unknown identity gets the same answer as a
// known identity with no passkeys, so this endpoint cannot be used to
// enumerate accounts.
func (s *AuthService) AuthOptions(ctx context.Context, email string) (core.AuthOptions, error) {
	options := core.AuthOptions{Password: true}

	account, err := s.accounts.FindAccount(ctx, email)
	if err != nil {
		if err == core.ErrAccountNotFound {
			return options, nil
		}
		return options, fmt.Errorf("failed to negotiate auth options: %w", err)
	}

	options.WebAuthn = account.HasCredentials()
	return options, nil
}

// CreateSession issues a session for an authenticated account: a record in
// the session store plus the signed token handed to the client.
func (s *AuthService) CreateSession(ctx context.Context, account *core.Account) (string, *core.Session, error) {
	now := time.Now().UTC()
	session := &core.Session{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		Email:     account.Email,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	if err := s.sessions.Put(ctx, session.ID, account.ID, s.sessionTTL); err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w", err)
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session token: %w", err)
	}
	return token, session, nil
}

// ResolveSession maps a session token back to its account. The token
// signature, the server-side session record, and the account must all still
// exist; anything less is core.ErrUnauthenticated.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*core.Account, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, core.ErrUnauthenticated
	}

	accountID, err := s.sessions.Get(ctx, session.ID)
	if err != nil || accountID != session.AccountID {
		return nil, core.ErrUnauthenticated
	}

	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, core.ErrUnauthenticated
	}
	return account, nil
}

// DestroySession invalidates a session. It is idempotent: an unparseable
// token or an already-absent session is not an error.
func (s *AuthService) DestroySession(ctx context.Context, token string) error {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil
	}

	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.publish(ctx, core.SecurityEvent{
		Kind:  core.EventLogout,
		Email: session.Email,
		At:    time.Now().UTC(),
	})
	return nil
}

// publish emits an audit event. Audit failures are logged and swallowed: the
// authentication outcome they describe has already happened.
func (s *AuthService) publish(ctx context.Context, event core.SecurityEvent) {
	if s.eventPub == nil {
		return
	}
	if err := s.eventPub.PublishSecurityEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish security event", "kind", event.Kind, "error", err)
	}
}
