package service

import (
	"context"
	"sync"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/coffeemasters/authcore/core"
)

// FlowState is a login flow phase.
type FlowState int

const (
	// FlowCollecting waits for the user to supply their identity.
	FlowCollecting FlowState = iota

	// FlowNegotiating resolves which factors to offer. The flow is only in
	// this state while a SubmitIdentity call is in flight.
	FlowNegotiating

	// FlowCompleting waits for the user to finish a factor.
	FlowCompleting

	// FlowAuthenticated holds an established session until logout.
	FlowAuthenticated
)

func (s FlowState) String() string {
	switch s {
	case FlowCollecting:
		return "collecting"
	case FlowNegotiating:
		return "negotiating"
	case FlowCompleting:
		return "completing"
	case FlowAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// LoginFlow drives the multi-step login sequence as an explicit state
// machine: collect identity, negotiate factors, complete one factor,
// authenticated. All step state lives here rather than in shared flags, and
// the machine rejects re-entrant submissions, so a double identity submit
// cannot race two challenges against each other.
type LoginFlow struct {
	mu    sync.Mutex
	state FlowState

	email     string
	options   core.AuthOptions
	assertion *protocol.CredentialAssertion
	token     string
	account   *core.Account

	auth     *AuthService
	webauthn *WebAuthnService
}

// NewLoginFlow creates a flow in the collecting state.
func NewLoginFlow(auth *AuthService, webauthn *WebAuthnService) *LoginFlow {
	return &LoginFlow{
		state:    FlowCollecting,
		auth:     auth,
		webauthn: webauthn,
	}
}

// State returns the current flow state.
func (f *LoginFlow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Options returns the negotiated factor options.
func (f *LoginFlow) Options() core.AuthOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.options
}

// Assertion returns the pending WebAuthn ceremony options, if any.
func (f *LoginFlow) Assertion() *protocol.CredentialAssertion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assertion
}

// Token returns the session token after successful authentication.
func (f *LoginFlow) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// Account returns the authenticated account, or nil.
func (f *LoginFlow) Account() *core.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.account
}

// SubmitIdentity moves the flow from collecting to completing by negotiating
// the available factors, beginning a WebAuthn ceremony when one is offered.
// A second submission while negotiation is in flight fails with ErrFlowBusy
// instead of issuing a competing challenge.
func (f *LoginFlow) SubmitIdentity(ctx context.Context, email string) (core.AuthOptions, error) {
	f.mu.Lock()
	if f.state == FlowNegotiating {
		f.mu.Unlock()
		return core.AuthOptions{}, core.ErrFlowBusy
	}
	if f.state != FlowCollecting {
		f.mu.Unlock()
		return core.AuthOptions{}, core.ErrInvalidTransition
	}
	f.state = FlowNegotiating
	f.email = email
	f.mu.Unlock()

	options, err := f.auth.AuthOptions(ctx, email)
	if err != nil {
		f.reset(FlowCollecting)
		return core.AuthOptions{}, err
	}

	var assertion *protocol.CredentialAssertion
	if options.WebAuthn {
		assertion, err = f.webauthn.BeginLogin(ctx, email)
		if err != nil {
			f.reset(FlowCollecting)
			return core.AuthOptions{}, err
		}
	}

	f.mu.Lock()
	f.state = FlowCompleting
	f.options = options
	f.assertion = assertion
	f.mu.Unlock()
	return options, nil
}

// CompletePassword finishes the flow with the password factor. On failure
// the flow stays in completing with the ceremony reference cleared, so a
// stale challenge cannot be replayed later.
func (f *LoginFlow) CompletePassword(ctx context.Context, password string) (string, error) {
	f.mu.Lock()
	if f.state != FlowCompleting {
		f.mu.Unlock()
		return "", core.ErrInvalidTransition
	}
	email := f.email
	f.mu.Unlock()

	account, err := f.auth.PasswordLogin(ctx, email, password)
	if err != nil {
		f.clearCeremony()
		return "", err
	}
	return f.establish(ctx, account)
}

// CompleteWebAuthn finishes the flow with an assertion response.
func (f *LoginFlow) CompleteWebAuthn(ctx context.Context, response *protocol.ParsedCredentialAssertionData) (string, error) {
	f.mu.Lock()
	if f.state != FlowCompleting || f.assertion == nil {
		f.mu.Unlock()
		return "", core.ErrInvalidTransition
	}
	f.mu.Unlock()

	account, err := f.webauthn.FinishLogin(ctx, response)
	if err != nil {
		f.clearCeremony()
		return "", err
	}
	return f.establish(ctx, account)
}

// Restart abandons the flow and returns to collecting. Any issued challenge
// is left to expire in the ledger; single-use plus expiry closes the race.
func (f *LoginFlow) Restart() {
	f.reset(FlowCollecting)
}

// Logout destroys the session and returns the flow to collecting.
func (f *LoginFlow) Logout(ctx context.Context) error {
	f.mu.Lock()
	if f.state != FlowAuthenticated {
		f.mu.Unlock()
		return core.ErrInvalidTransition
	}
	token := f.token
	f.mu.Unlock()

	if err := f.auth.DestroySession(ctx, token); err != nil {
		return err
	}
	f.reset(FlowCollecting)
	return nil
}

func (f *LoginFlow) establish(ctx context.Context, account *core.Account) (string, error) {
	token, _, err := f.auth.CreateSession(ctx, account)
	if err != nil {
		f.clearCeremony()
		return "", err
	}

	f.mu.Lock()
	f.state = FlowAuthenticated
	f.token = token
	f.account = account
	f.assertion = nil
	f.mu.Unlock()
	return token, nil
}

func (f *LoginFlow) clearCeremony() {
	f.mu.Lock()
	f.assertion = nil
	f.mu.Unlock()
}

func (f *LoginFlow) reset(state FlowState) {
	f.mu.Lock()
	f.state = state
	f.email = ""
	f.options = core.AuthOptions{}
	f.assertion = nil
	f.token = ""
	f.account = nil
	f.mu.Unlock()
}
