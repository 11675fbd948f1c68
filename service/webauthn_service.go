package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"

	"github.com/coffeemasters/authcore/core"
	"github.com/coffeemasters/authcore/ports"
)

// DefaultChallengeTTL is the ceremony challenge validity window.
const DefaultChallengeTTL = 60 * time.Second

// WebAuthnConfig configures the relying party.
type WebAuthnConfig struct {
	// RPID is the relying party identifier, the domain credentials are
	// scoped to.
	RPID string

	// RPName is the human-readable relying party name shown by browsers.
	RPName string

	// RPOrigins are the exact origins ceremony responses may be collected on.
	RPOrigins []string

	// ChallengeTTL overrides DefaultChallengeTTL when positive.
	ChallengeTTL time.Duration
}

// WebAuthnService runs the registration and authentication ceremonies. It
// issues challenges through the ledger, verifies attestation and assertion
// responses, and owns the signature-counter replay check.
type WebAuthnService struct {
	webauthn *webauthn.WebAuthn
	accounts ports.AccountStore
	ledger   ports.ChallengeLedger
	eventPub ports.EventPublisher
	logger   *slog.Logger

	origins      []string
	challengeTTL time.Duration
}

// NewWebAuthnService creates a new ceremony manager. eventPub may be nil.
func NewWebAuthnService(
	cfg WebAuthnConfig,
	accounts ports.AccountStore,
	ledger ports.ChallengeLedger,
	eventPub ports.EventPublisher,
) (*WebAuthnService, error) {
	ttl := cfg.ChallengeTTL
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPName,
		RPOrigins:     cfg.RPOrigins,
		Timeouts: webauthn.TimeoutsConfig{
			Login:        webauthn.TimeoutConfig{Enforce: true, Timeout: ttl, TimeoutUVD: ttl},
			Registration: webauthn.TimeoutConfig{Enforce: true, Timeout: ttl, TimeoutUVD: ttl},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure webauthn: %w", err)
	}

	return &WebAuthnService{
		webauthn:     wa,
		accounts:     accounts,
		ledger:       ledger,
		eventPub:     eventPub,
		logger:       slog.Default(),
		origins:      cfg.RPOrigins,
		challengeTTL: ttl,
	}, nil
}

// BeginRegistration starts a registration ceremony for an identity. An
// unknown identity gets a fresh passwordless account, so a passkey can be
// the first and only factor. Already-registered credential IDs are excluded
// from the options to stop the same authenticator registering twice.
func (s *WebAuthnService) BeginRegistration(ctx context.Context, email, name string) (*protocol.CredentialCreation, error) {
	account, err := s.accounts.FindAccount(ctx, email)
	if err == core.ErrAccountNotFound {
		account = &core.Account{
			ID:        uuid.New().String(),
			Email:     email,
			Name:      name,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.accounts.CreateAccount(ctx, account); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	exclusions := make([]protocol.CredentialDescriptor, len(account.Credentials))
	for i := range account.Credentials {
		exclusions[i] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: account.Credentials[i].ID,
		}
	}

	options, session, err := s.webauthn.BeginRegistration(
		webauthnAccount{account},
		webauthn.WithExclusions(exclusions),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to begin registration: %w", err)
	}

	if err := s.recordChallenge(ctx, session, account.ID, core.CeremonyRegistration); err != nil {
		return nil, err
	}
	return options, nil
}

// FinishRegistration verifies an attestation response and stores the new
// credential, returning it with the owning account. The embedded challenge
// is consumed first, success or fail, so a replayed response always dies at
// the ledger. No state is persisted unless every verification step passes.
func (s *WebAuthnService) FinishRegistration(ctx context.Context, response *protocol.ParsedCredentialCreationData) (*core.Account, *core.Credential, error) {
	challenge, session, err := s.consumeChallenge(ctx, response.Response.CollectedClientData.Challenge, core.CeremonyRegistration)
	if err != nil {
		return nil, nil, err
	}

	if err := s.checkOrigin(ctx, response.Response.CollectedClientData.Origin); err != nil {
		return nil, nil, err
	}

	account, err := s.accounts.FindAccountByID(ctx, challenge.AccountID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load ceremony account: %w", err)
	}

	libCred, err := s.webauthn.CreateCredential(webauthnAccount{account}, *session, response)
	if err != nil {
		return nil, nil, fmt.Errorf("attestation verification failed: %w", err)
	}

	cred := fromLibraryCredential(account.ID, libCred)
	if err := s.accounts.AddCredential(ctx, account.ID, cred); err != nil {
		return nil, nil, err
	}

	s.publish(ctx, core.SecurityEvent{
		Kind:         core.EventRegistration,
		Email:        account.Email,
		CredentialID: fmt.Sprintf("%x", cred.ID),
		Detail:       "webauthn",
		At:           time.Now().UTC(),
	})

	return account, &cred, nil
}

// BeginLogin starts an authentication ceremony. With an email the options
// carry the account's acceptable credential IDs; without one the ceremony is
// anonymous and relies on discoverable credentials.
func (s *WebAuthnService) BeginLogin(ctx context.Context, email string) (*protocol.CredentialAssertion, error) {
	if email == "" {
		options, session, err := s.webauthn.BeginDiscoverableLogin()
		if err != nil {
			return nil, fmt.Errorf("failed to begin discoverable login: %w", err)
		}
		if err := s.recordChallenge(ctx, session, "", core.CeremonyAuthentication); err != nil {
			return nil, err
		}
		return options, nil
	}

	account, err := s.accounts.FindAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	if !account.HasCredentials() {
		return nil, core.ErrUnknownCredential
	}

	options, session, err := s.webauthn.BeginLogin(webauthnAccount{account})
	if err != nil {
		return nil, fmt.Errorf("failed to begin login: %w", err)
	}

	if err := s.recordChallenge(ctx, session, account.ID, core.CeremonyAuthentication); err != nil {
		return nil, err
	}
	return options, nil
}

// FinishLogin verifies an assertion response and returns the authenticated
// account. A signature counter at or below the stored counter (when either
// is nonzero) is reported as core.ErrPossibleClone and leaves the stored
// counter untouched; on success the counter advances.
func (s *WebAuthnService) FinishLogin(ctx context.Context, response *protocol.ParsedCredentialAssertionData) (*core.Account, error) {
	challenge, session, err := s.consumeChallenge(ctx, response.Response.CollectedClientData.Challenge, core.CeremonyAuthentication)
	if err != nil {
		return nil, err
	}

	if err := s.checkOrigin(ctx, response.Response.CollectedClientData.Origin); err != nil {
		return nil, err
	}

	account, storedCred, err := s.accounts.FindAccountByCredential(ctx, response.RawID)
	if err != nil {
		return nil, err
	}

	// A challenge issued for one account must not verify a credential owned
	// by another.
	if challenge.AccountID != "" && challenge.AccountID != account.ID {
		return nil, core.ErrUnknownCredential
	}

	var libCred *webauthn.Credential
	if len(session.UserID) == 0 {
		libCred, err = s.webauthn.ValidateDiscoverableLogin(s.discoverableAccount(ctx), *session, response)
	} else {
		libCred, err = s.webauthn.ValidateLogin(webauthnAccount{account}, *session, response)
	}
	if err != nil {
		return nil, fmt.Errorf("assertion verification failed: %w", err)
	}

	if libCred.Authenticator.CloneWarning {
		s.publish(ctx, core.SecurityEvent{
			Kind:         core.EventCloneDetected,
			Email:        account.Email,
			CredentialID: fmt.Sprintf("%x", storedCred.ID),
			Detail: fmt.Sprintf("reported counter %d, stored counter %d",
				libCred.Authenticator.SignCount, storedCred.SignCount),
			At: time.Now().UTC(),
		})
		return nil, core.ErrPossibleClone
	}

	if err := s.accounts.UpdateCredentialCounter(ctx, storedCred.ID, libCred.Authenticator.SignCount); err != nil {
		return nil, fmt.Errorf("failed to update signature counter: %w", err)
	}

	s.publish(ctx, core.SecurityEvent{
		Kind:         core.EventLogin,
		Email:        account.Email,
		CredentialID: fmt.Sprintf("%x", storedCred.ID),
		Detail:       "webauthn",
		At:           time.Now().UTC(),
	})

	return account, nil
}

// recordChallenge stores the ceremony session state in the ledger under the
// challenge value embedded in the options.
func (s *WebAuthnService) recordChallenge(ctx context.Context, session *webauthn.SessionData, accountID string, kind core.CeremonyKind) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal ceremony session: %w", err)
	}

	now := time.Now().UTC()
	challenge := &core.Challenge{
		Value:     session.Challenge,
		AccountID: accountID,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.challengeTTL),
		Data:      payload,
	}

	if err := s.ledger.Issue(ctx, challenge); err != nil {
		return fmt.Errorf("failed to record challenge: %w", err)
	}
	return nil
}

// consumeChallenge single-use-consumes the response's embedded challenge and
// restores the ceremony session state. A challenge issued for the other
// ceremony kind is treated as never issued.
func (s *WebAuthnService) consumeChallenge(ctx context.Context, value string, kind core.CeremonyKind) (*core.Challenge, *webauthn.SessionData, error) {
	challenge, err := s.ledger.Consume(ctx, value)
	if err != nil {
		return nil, nil, err
	}
	if challenge.Kind != kind {
		return nil, nil, core.ErrChallengeNotFound
	}

	var session webauthn.SessionData
	if err := json.Unmarshal(challenge.Data, &session); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal ceremony session: %w", err)
	}
	return challenge, &session, nil
}

// checkOrigin verifies the response was collected on a configured origin.
// The mismatch is audited distinctly even though clients only see a generic
// failure.
func (s *WebAuthnService) checkOrigin(ctx context.Context, origin string) error {
	for _, allowed := range s.origins {
		if origin == allowed {
			return nil
		}
	}

	s.publish(ctx, core.SecurityEvent{
		Kind:   core.EventOriginMismatch,
		Detail: fmt.Sprintf("response origin %q", origin),
		At:     time.Now().UTC(),
	})
	return core.ErrOriginMismatch
}

// discoverableAccount resolves the user handle reported by a discoverable
// credential back to its account.
func (s *WebAuthnService) discoverableAccount(ctx context.Context) webauthn.DiscoverableUserHandler {
	return func(rawID, userHandle []byte) (webauthn.User, error) {
		account, err := s.accounts.FindAccountByID(ctx, string(userHandle))
		if err != nil {
			return nil, err
		}
		return webauthnAccount{account}, nil
	}
}

// publish emits an audit event, logging and swallowing failures.
func (s *WebAuthnService) publish(ctx context.Context, event core.SecurityEvent) {
	if s.eventPub == nil {
		return
	}
	if err := s.eventPub.PublishSecurityEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish security event", "kind", event.Kind, "error", err)
	}
}
