package service

import (
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/coffeemasters/authcore/core"
)

// webauthnAccount adapts a core.Account to the go-webauthn User interface.
// The account ID doubles as the WebAuthn user handle.
type webauthnAccount struct {
	account *core.Account
}

func (a webauthnAccount) WebAuthnID() []byte {
	return []byte(a.account.ID)
}

func (a webauthnAccount) WebAuthnName() string {
	return a.account.Email
}

func (a webauthnAccount) WebAuthnDisplayName() string {
	if a.account.Name != "" {
		return a.account.Name
	}
	return a.account.Email
}

// WebAuthnIcon satisfies the deprecated icon accessor in the webauthn.User
// interface; icons are intentionally unused.
func (a webauthnAccount) WebAuthnIcon() string {
	return ""
}

func (a webauthnAccount) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(a.account.Credentials))
	for i := range a.account.Credentials {
		creds[i] = toLibraryCredential(&a.account.Credentials[i])
	}
	return creds
}

func toLibraryCredential(c *core.Credential) webauthn.Credential {
	transports := make([]protocol.AuthenticatorTransport, len(c.Transports))
	for i, t := range c.Transports {
		transports[i] = protocol.AuthenticatorTransport(t)
	}
	return webauthn.Credential{
		ID:              c.ID,
		PublicKey:       c.PublicKey,
		AttestationType: c.AttestationType,
		Transport:       transports,
		Flags: webauthn.CredentialFlags{
			BackupEligible: c.BackupEligible,
			BackupState:    c.BackupState,
		},
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.SignCount,
		},
	}
}

func fromLibraryCredential(accountID string, wc *webauthn.Credential) core.Credential {
	transports := make([]string, len(wc.Transport))
	for i, t := range wc.Transport {
		transports[i] = string(t)
	}
	return core.Credential{
		ID:              wc.ID,
		AccountID:       accountID,
		PublicKey:       wc.PublicKey,
		AttestationType: wc.AttestationType,
		Transports:      transports,
		AAGUID:          wc.Authenticator.AAGUID,
		SignCount:       wc.Authenticator.SignCount,
		BackupEligible:  wc.Flags.BackupEligible,
		BackupState:     wc.Flags.BackupState,
		CreatedAt:       time.Now().UTC(),
	}
}
