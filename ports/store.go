package ports

import (
	"context"

	"github.com/coffeemasters/authcore/core"
)

// AccountStore is the durable mapping from identities to password hashes and
// registered public-key credentials. Implementations must serialize writes
// per account so concurrent registrations cannot both win, and must enforce
// global uniqueness of credential IDs.
type AccountStore interface {
	// FindAccount returns the account for an email.
	// Returns core.ErrAccountNotFound if no account matches.
	FindAccount(ctx context.Context, email string) (*core.Account, error)

	// FindAccountByID returns the account for an account ID.
	FindAccountByID(ctx context.Context, id string) (*core.Account, error)

	// FindAccountByCredential resolves a credential ID to its credential and
	// owning account. Returns core.ErrUnknownCredential if absent.
	FindAccountByCredential(ctx context.Context, credentialID []byte) (*core.Account, *core.Credential, error)

	// CreateAccount persists a new account.
	// Returns core.ErrAccountExists if the email is already registered.
	CreateAccount(ctx context.Context, account *core.Account) error

	// AddCredential attaches a credential to an account. Returns
	// core.ErrCredentialExists if the credential ID is registered anywhere.
	AddCredential(ctx context.Context, accountID string, cred core.Credential) error

	// UpdateCredentialCounter records the signature counter after a
	// successful assertion.
	UpdateCredentialCounter(ctx context.Context, credentialID []byte, counter uint32) error

	// ListCredentials returns the credentials registered to an account, in
	// registration order. An account with no credentials yields an empty slice.
	ListCredentials(ctx context.Context, accountID string) ([]core.Credential, error)
}
