package core

import "errors"

var (
	// ErrAccountExists is returned when registering an identity that is taken.
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountNotFound is returned when no account matches the identity.
	ErrAccountNotFound = errors.New("account not found")

	// ErrCredentialExists is returned when a credential ID is already
	// registered, on any account.
	ErrCredentialExists = errors.New("credential already registered")

	// ErrUnknownCredential is returned when an assertion names a credential
	// the store has no record of.
	ErrUnknownCredential = errors.New("unknown credential")

	// ErrInvalidCredentials is the generic login failure. Callers must not be
	// able to tell a wrong password from a missing account.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrChallengeNotFound is returned when consuming a challenge that was
	// never issued.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrChallengeExpired is returned when a challenge is consumed outside
	// its validity window.
	ErrChallengeExpired = errors.New("challenge has expired")

	// ErrChallengeUsed is returned when a challenge is consumed twice.
	ErrChallengeUsed = errors.New("challenge already used")

	// ErrPossibleClone is returned when an assertion's signature counter is
	// not strictly greater than the stored counter, which signals a cloned
	// authenticator. It must never be collapsed into ErrInvalidCredentials
	// before the audit trail has seen it.
	ErrPossibleClone = errors.New("possible cloned authenticator detected")

	// ErrOriginMismatch is returned when a ceremony response was collected on
	// an origin the relying party does not recognize.
	ErrOriginMismatch = errors.New("origin mismatch")

	// ErrSessionNotFound is returned when a session token does not resolve.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnauthenticated is returned when a request carries no valid session.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidTransition is returned by the login flow when an operation is
	// attempted from the wrong state.
	ErrInvalidTransition = errors.New("invalid login flow transition")

	// ErrFlowBusy is returned by the login flow when a step is re-entered
	// while a previous submission is still in flight.
	ErrFlowBusy = errors.New("login flow step already in progress")
)
