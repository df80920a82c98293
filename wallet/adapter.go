// Package wallet connects the app to an external wallet over deep links.
//
// Connect sends the wallet a connect request carrying a fresh X25519 public key.
// The wallet answers later through an inbound URL, which HandleConnectionResponse
// decrypts into a WalletSession. One Adapter type serves every provider; providers
// differ only in their model.AdapterConfig.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AlexZinkM/walletlink/internal/crypto"
	"github.com/AlexZinkM/walletlink/internal/deeplink"
	"github.com/AlexZinkM/walletlink/internal/model"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultDuplicateWindow is how long an identical inbound URL is ignored
const DefaultDuplicateWindow = 2 * time.Second

// Connector is the capability set shared by every wallet provider
type Connector interface {
	Type() model.WalletType
	Connect(ctx context.Context) error
	HandleConnectionResponse(ctx context.Context, rawURL string) error
	Disconnect(ctx context.Context) error
	CheckInstalled(ctx context.Context) (bool, error)
	State() model.WalletConnectionState
}

// SessionStore persists the session produced by a handshake
type SessionStore interface {
	SaveWithAuth(ctx context.Context, session model.WalletSession) bool
	Get(ctx context.Context) (*model.WalletSession, error)
	ClearWithAuth(ctx context.Context) error
}

// Deps are the collaborators an Adapter needs
type Deps struct {
	Keys     crypto.Store // scoped store holding the ephemeral keypair
	Sessions SessionStore
	Opener   deeplink.Opener
}

// Option customizes an Adapter
type Option func(*Adapter)

// WithDuplicateWindow sets how long an identical inbound URL is ignored
func WithDuplicateWindow(d time.Duration) Option {
	return func(a *Adapter) {
		a.duplicateWindow = d
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// WithStateListener registers fn to receive every state change, in order
func WithStateListener(fn func(model.WalletConnectionState)) Option {
	return func(a *Adapter) {
		a.listeners = append(a.listeners, fn)
	}
}

// Adapter runs the connect handshake for one provider. Safe for concurrent use.
type Adapter struct {
	cfg             model.AdapterConfig
	deps            Deps
	duplicateWindow time.Duration
	now             func() time.Time
	listeners       []func(model.WalletConnectionState)

	// notifyMu serializes listener calls
	notifyMu sync.Mutex

	mu               sync.Mutex
	state            model.WalletConnectionState
	dispatching      bool
	connectStartedAt time.Time
	connectURL       string
	lastURL          string
	lastURLAt        time.Time
}

var _ Connector = (*Adapter)(nil)

// New returns an adapter for cfg in the DISCONNECTED state
func New(cfg model.AdapterConfig, deps Deps, opts ...Option) *Adapter {
	a := &Adapter{
		cfg:             cfg,
		deps:            deps,
		duplicateWindow: DefaultDuplicateWindow,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.state = stateFor(cfg.Type, model.StateDisconnected, nil)
	return a
}

// stateFor derives the flags from the state so IsConnected can never disagree with State
func stateFor(t model.WalletType, s model.ConnectionState, errMsg *string) model.WalletConnectionState {
	return model.WalletConnectionState{
		WalletType:           t,
		State:                s,
		IsConnecting:         s == model.StateConnecting,
		IsCheckingConnection: s == model.StateCheckingConnection,
		IsConnected:          s == model.StateConnected,
		Error:                errMsg,
	}
}

// Type returns the provider this adapter serves
func (a *Adapter) Type() model.WalletType {
	return a.cfg.Type
}

// Config returns the adapter's static config
func (a *Adapter) Config() model.AdapterConfig {
	return a.cfg
}

// State returns a snapshot of the connection state
func (a *Adapter) State() model.WalletConnectionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// ConnectURL returns the last dispatched connect URL, or "" if none
func (a *Adapter) ConnectURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connectURL
}

// commitLocked updates the state and publishes it to the listeners.
// Caller holds a.mu; commitLocked releases it. notifyMu is taken before a.mu is
// released so listeners observe changes in commit order.
func (a *Adapter) commitLocked(s model.ConnectionState, errMsg *string) {
	a.state = stateFor(a.cfg.Type, s, errMsg)
	st := a.state

	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	a.mu.Unlock()

	fields := log.Fields{"wallet": a.cfg.Type, "state": st.State}
	if st.Error != nil {
		log.WithFields(fields).Warn(*st.Error)
	} else {
		log.WithFields(fields).Info("wallet state changed")
	}

	for _, fn := range a.listeners {
		fn(st)
	}
}

// fail moves to ERROR with a provider-prefixed message and returns the prefixed error
func (a *Adapter) fail(err error) error {
	perr := &model.ProviderError{Wallet: a.cfg.Type, Err: err}
	msg := perr.Error()

	a.mu.Lock()
	a.commitLocked(model.StateError, &msg)
	return perr
}

// CheckInstalled probes whether the OS resolves the provider's scheme. No side effects.
func (a *Adapter) CheckInstalled(ctx context.Context) (bool, error) {
	return a.deps.Opener.CanOpen(ctx, a.cfg.DeepLink.Scheme)
}

// Connect dispatches a connect request to the wallet app and returns without waiting for the answer.
// A second call while one is still dispatching fails with model.ErrConnectInProgress.
// A call after the request went out supersedes it: only the newest keypair is kept.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.dispatching {
		a.mu.Unlock()
		return &model.ProviderError{Wallet: a.cfg.Type, Err: model.ErrConnectInProgress}
	}
	a.dispatching = true
	a.connectStartedAt = a.now()
	a.lastURL = ""
	a.commitLocked(model.StateConnecting, nil)

	defer func() {
		a.mu.Lock()
		a.dispatching = false
		a.mu.Unlock()
	}()

	connectURL, err := a.dispatch(ctx)
	if err != nil {
		return a.fail(err)
	}

	a.mu.Lock()
	a.connectURL = connectURL
	a.mu.Unlock()
	return nil
}

// dispatch checks installation, creates the keypair and opens the connect URL.
// The keypair is removed again if anything after storing it fails.
func (a *Adapter) dispatch(ctx context.Context) (string, error) {
	installed, err := a.CheckInstalled(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to check installation: %w", err)
	}
	if !installed {
		return "", fmt.Errorf("%w: install %s and try again", model.ErrWalletNotInstalled, a.cfg.Type.DisplayName())
	}

	kp, err := crypto.GenerateKeypair()
	if err != nil {
		return "", err
	}
	defer clear(kp.SecretKey)

	if err := crypto.StoreKeypair(ctx, a.deps.Keys, a.cfg.StorageKey, kp); err != nil {
		return "", err
	}

	connectURL, err := a.buildAndOpen(ctx, kp)
	if err != nil {
		if clearErr := crypto.ClearKeypair(ctx, a.deps.Keys, a.cfg.StorageKey); clearErr != nil {
			log.WithError(clearErr).WithField("wallet", a.cfg.Type).Warn("failed to remove keypair after connect error")
		}
		return "", err
	}
	return connectURL, nil
}

func (a *Adapter) buildAndOpen(ctx context.Context, kp *crypto.Keypair) (string, error) {
	enc, err := crypto.DeriveEncryptionKeypair(kp)
	if err != nil {
		return "", err
	}
	defer enc.Wipe()

	connectURL, err := deeplink.BuildConnectURL(a.cfg, enc.PublicKeyBase58())
	if err != nil {
		return "", fmt.Errorf("failed to build connect url: %w", err)
	}

	if err := deeplink.OpenWalletApp(ctx, a.deps.Opener, connectURL); err != nil {
		return "", err
	}
	return connectURL, nil
}

// HandleConnectionResponse processes the wallet's answer delivered as an inbound URL.
// The same URL seen again within the duplicate window is ignored, as is any URL
// arriving while a response is being checked or the adapter is already connected.
// Ignored deliveries return nil.
func (a *Adapter) HandleConnectionResponse(ctx context.Context, rawURL string) error {
	now := a.now()

	a.mu.Lock()
	if rawURL == a.lastURL && now.Sub(a.lastURLAt) < a.duplicateWindow {
		a.mu.Unlock()
		log.WithField("wallet", a.cfg.Type).Debug("ignoring duplicate wallet response")
		return nil
	}
	a.lastURL = rawURL
	a.lastURLAt = now

	switch current := a.state.State; current {
	case model.StateConnected, model.StateCheckingConnection:
		a.mu.Unlock()
		log.WithFields(log.Fields{"wallet": a.cfg.Type, "state": current}).Debug("ignoring wallet response")
		return nil
	}
	a.commitLocked(model.StateCheckingConnection, nil)

	session, err := a.processResponse(ctx, rawURL)
	if err != nil {
		return a.fail(err)
	}

	if err := a.saveSessionAndComplete(ctx, *session); err != nil {
		return a.fail(err)
	}
	return nil
}

// processResponse turns the inbound URL into a session without persisting anything
func (a *Adapter) processResponse(ctx context.Context, rawURL string) (*model.WalletSession, error) {
	params := deeplink.Parse(rawURL)

	// Wallet-reported errors take precedence over any other field
	if res := deeplink.ValidateResponse(params); !res.Valid {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidResponse, res.Error)
	}

	fields := deeplink.ExtractConnectionFields(params, a.cfg.Type)
	if a.cfg.Encryption.RequiresKeypair && fields.Complete() {
		return a.decryptResponse(ctx, fields)
	}

	// Providers or configurations that skip encryption send the address directly
	publicKey, token := deeplink.ExtractDirectFields(params)
	if publicKey == "" {
		return nil, fmt.Errorf("%w: response has neither encrypted nor direct connection fields", model.ErrInvalidResponse)
	}
	if token == "" {
		token = "wallet_" + uuid.NewString()
	}
	return a.newSession(publicKey, token), nil
}

func (a *Adapter) decryptResponse(ctx context.Context, fields deeplink.ConnectionFields) (*model.WalletSession, error) {
	if !crypto.ValidateParams(fields.PeerPublicKey, fields.Nonce, fields.Data) {
		return nil, fmt.Errorf("%w: malformed encryption parameters", model.ErrInvalidResponse)
	}

	kp, err := a.keypairForDecryption(ctx)
	if err != nil {
		return nil, err
	}
	defer clear(kp.SecretKey)

	enc, err := crypto.DeriveEncryptionKeypair(kp)
	if err != nil {
		return nil, err
	}
	defer enc.Wipe()

	shared, err := crypto.CreateSharedSecret(fields.PeerPublicKey, &enc.SecretKey)
	if err != nil {
		return nil, err
	}
	defer clear(shared[:])

	var payload model.ConnectPayload
	if err := crypto.Decrypt(fields.Data, fields.Nonce, shared, &payload); err != nil {
		return nil, err
	}
	if payload.PublicKey == "" {
		return nil, fmt.Errorf("%w: decrypted payload has no public_key", model.ErrInvalidResponse)
	}
	return a.newSession(payload.PublicKey, payload.Session), nil
}

// keypairForDecryption loads the stored keypair. If none is found a new one is
// generated and stored once; it cannot open data sealed for the lost key, so in
// practice this path ends in a decryption failure rather than a connection.
func (a *Adapter) keypairForDecryption(ctx context.Context) (*crypto.Keypair, error) {
	kp, err := crypto.RetrieveKeypair(ctx, a.deps.Keys, a.cfg.StorageKey)
	if err != nil {
		log.WithError(err).WithField("wallet", a.cfg.Type).Warn("failed to read keypair")
	}
	if kp != nil {
		return kp, nil
	}

	log.WithField("wallet", a.cfg.Type).Warn("no stored keypair for wallet response, regenerating")
	kp, err = crypto.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMissingKeypair, err)
	}
	if err := crypto.StoreKeypair(ctx, a.deps.Keys, a.cfg.StorageKey, kp); err != nil {
		clear(kp.SecretKey)
		return nil, fmt.Errorf("%w: %v", model.ErrMissingKeypair, err)
	}
	return kp, nil
}

func (a *Adapter) newSession(publicKey, token string) *model.WalletSession {
	if _, err := solana.PublicKeyFromBase58(publicKey); err != nil {
		log.WithField("wallet", a.cfg.Type).Warn("wallet returned an address that is not a Solana public key")
	}
	return &model.WalletSession{
		PublicKey:    publicKey,
		SessionToken: token,
		ConnectedAt:  a.now().UnixMilli(),
		WalletType:   a.cfg.Type,
	}
}

// saveSessionAndComplete persists the session, marks the adapter connected and drops the keypair.
// If the session cannot be saved everything is cleaned up locally.
func (a *Adapter) saveSessionAndComplete(ctx context.Context, session model.WalletSession) error {
	if !a.deps.Sessions.SaveWithAuth(ctx, session) {
		if err := a.cleanup(ctx); err != nil {
			log.WithError(err).WithField("wallet", a.cfg.Type).Warn("cleanup after storage failure incomplete")
		}
		return fmt.Errorf("%w: failed to save session", model.ErrStorageFailure)
	}

	a.mu.Lock()
	a.commitLocked(model.StateConnected, nil)

	// The keypair is single-use
	if err := crypto.ClearKeypair(ctx, a.deps.Keys, a.cfg.StorageKey); err != nil {
		log.WithError(err).WithField("wallet", a.cfg.Type).Warn("failed to clear keypair after connect")
	}
	return nil
}

// cleanup removes the session, the auth mirror and the keypair
func (a *Adapter) cleanup(ctx context.Context) error {
	return errors.Join(
		a.deps.Sessions.ClearWithAuth(ctx),
		crypto.ClearKeypair(ctx, a.deps.Keys, a.cfg.StorageKey),
	)
}

// Disconnect clears the session and keypair and returns to DISCONNECTED.
// The state is reset even when cleanup reports an error.
func (a *Adapter) Disconnect(ctx context.Context) error {
	err := a.cleanup(ctx)

	a.mu.Lock()
	a.lastURL = ""
	a.connectURL = ""
	a.commitLocked(model.StateDisconnected, nil)

	if err != nil {
		return &model.ProviderError{Wallet: a.cfg.Type, Err: err}
	}
	return nil
}

// RefreshFromSession marks a CONNECTING adapter connected when a session for this
// provider was stored after the connect started. It backs up a missed inbound URL.
func (a *Adapter) RefreshFromSession(ctx context.Context) (bool, error) {
	a.mu.Lock()
	if a.state.State == model.StateConnected {
		a.mu.Unlock()
		return true, nil
	}
	if a.state.State != model.StateConnecting {
		a.mu.Unlock()
		return false, nil
	}
	startedAt := a.connectStartedAt
	a.mu.Unlock()

	session, err := a.deps.Sessions.Get(ctx)
	if err != nil {
		return false, err
	}
	if session == nil || session.WalletType != a.cfg.Type || session.ConnectedAt < startedAt.UnixMilli() {
		return false, nil
	}

	a.mu.Lock()
	if a.state.State != model.StateConnecting {
		connected := a.state.State == model.StateConnected
		a.mu.Unlock()
		return connected, nil
	}
	a.commitLocked(model.StateConnected, nil)

	if err := crypto.ClearKeypair(ctx, a.deps.Keys, a.cfg.StorageKey); err != nil {
		log.WithError(err).WithField("wallet", a.cfg.Type).Warn("failed to clear keypair after connect")
	}
	return true, nil
}
