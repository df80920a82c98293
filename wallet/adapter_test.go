package wallet_test

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AlexZinkM/walletlink/internal/crypto"
	"github.com/AlexZinkM/walletlink/internal/deeplink"
	"github.com/AlexZinkM/walletlink/internal/model"
	"github.com/AlexZinkM/walletlink/internal/session"
	"github.com/AlexZinkM/walletlink/internal/storage"
	"github.com/AlexZinkM/walletlink/wallet"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"
)

const (
	walletAddress = "7Qx1LJUMeCXr8ygfwdnEmGbYSsQPrgHrFU7VPuGXJeEH"
	callbackBase  = "http://localhost:8080/callback"
)

type fakeOpener struct {
	mu        sync.Mutex
	installed bool
	opened    []string
	entered   chan struct{}
	release   chan struct{}
}

func (f *fakeOpener) CanOpen(context.Context, string) (bool, error) {
	return f.installed, nil
}

func (f *fakeOpener) Open(_ context.Context, rawURL string) error {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, rawURL)
	return nil
}

func (f *fakeOpener) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingSessions counts saves and can be told to fail or hold them
type countingSessions struct {
	*session.Store
	mu      sync.Mutex
	saves   int
	fail    bool
	entered chan struct{}
	release chan struct{}
}

func (c *countingSessions) SaveWithAuth(ctx context.Context, s model.WalletSession) bool {
	c.mu.Lock()
	c.saves++
	fail := c.fail
	c.mu.Unlock()
	if c.entered != nil {
		c.entered <- struct{}{}
		<-c.release
	}
	if fail {
		return false
	}
	return c.Store.SaveWithAuth(ctx, s)
}

func (c *countingSessions) Saves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

type harness struct {
	adapter  *wallet.Adapter
	keys     *storage.MemoryStore
	sessions *countingSessions
	opener   *fakeOpener
	clock    *fakeClock
	states   *[]model.ConnectionState
}

func newHarness(t *testing.T, walletType model.WalletType) *harness {
	t.Helper()

	kv := storage.NewMemoryStore()
	h := &harness{
		keys:     storage.NewMemoryStore(),
		sessions: &countingSessions{Store: session.New(kv, kv)},
		opener:   &fakeOpener{installed: true},
		clock:    &fakeClock{now: time.UnixMilli(1700000000000)},
		states:   &[]model.ConnectionState{},
	}

	var mu sync.Mutex
	a, err := wallet.NewForType(walletType, wallet.Settings{
		Cluster:      model.ClusterDevnet,
		AppURL:       "https://ride.example.app",
		RedirectBase: callbackBase,
	}, wallet.Deps{
		Keys:     h.keys,
		Sessions: h.sessions,
		Opener:   h.opener,
	},
		wallet.WithClock(h.clock.Now),
		wallet.WithStateListener(func(s model.WalletConnectionState) {
			mu.Lock()
			defer mu.Unlock()
			*h.states = append(*h.states, s.State)
		}),
	)
	require.NoError(t, err)
	h.adapter = a
	return h
}

func (h *harness) hasKeypair(t *testing.T) bool {
	t.Helper()
	_, ok, err := h.keys.Get(context.Background(), h.adapter.Config().StorageKey)
	require.NoError(t, err)
	return ok
}

// walletResponse plays the wallet's side of the handshake: it reads the dapp key from
// the connect URL and seals payload for it under a fresh wallet keypair.
func walletResponse(t *testing.T, connectURL, keyParam string, payload model.ConnectPayload) string {
	t.Helper()

	dappKey, ok := deeplink.Parse(connectURL).Get("dapp_encryption_public_key")
	require.True(t, ok)

	walletPub, walletPriv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	shared, err := crypto.CreateSharedSecret(dappKey, walletPriv)
	require.NoError(t, err)

	enc, err := crypto.Encrypt(payload, shared)
	require.NoError(t, err)

	return callbackBase + "?" + keyParam + "=" + base58.Encode(walletPub[:]) +
		"&nonce=" + enc.Nonce + "&data=" + enc.Data
}

func TestConnectWalletNotInstalled(t *testing.T) {
	h := newHarness(t, model.WalletTypePhantom)
	h.opener.installed = false

	err := h.adapter.Connect(context.Background())
	require.ErrorIs(t, err, model.ErrWalletNotInstalled)

	st := h.adapter.State()
	require.Equal(t, model.StateError, st.State)
	require.False(t, st.IsConnecting)
	require.NotNil(t, st.Error)
	require.Contains(t, *st.Error, "not installed")
	require.Contains(t, *st.Error, "Phantom")
	require.False(t, h.hasKeypair(t))
	require.Empty(t, h.opener.Opened())
}

func TestConnectDispatchesRequest(t *testing.T) {
	h := newHarness(t, model.WalletTypePhantom)

	require.NoError(t, h.adapter.Connect(context.Background()))

	st := h.adapter.State()
	require.Equal(t, model.StateConnecting, st.State)
	require.True(t, st.IsConnecting)
	require.False(t, st.IsConnected)
	require.True(t, h.hasKeypair(t))

	opened := h.opener.Opened()
	require.Len(t, opened, 1)
	require.Equal(t, h.adapter.ConnectURL(), opened[0])

	params := deeplink.Parse(opened[0])
	redirect, _ := params.Get("redirect_link")
	require.Equal(t, callbackBase+"/phantom", redirect)
	cluster, _ := params.Get("cluster")
	require.Equal(t, "devnet", cluster)
}

func TestEncryptedHandshake(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypePhantom)
	require.NoError(t, h.adapter.Connect(ctx))

	resp := walletResponse(t, h.adapter.ConnectURL(), "phantom_encryption_public_key", model.ConnectPayload{
		PublicKey: walletAddress,
		Session:   "sess_abc",
	})
	require.NoError(t, h.adapter.HandleConnectionResponse(ctx, resp))

	st := h.adapter.State()
	require.Equal(t, model.StateConnected, st.State)
	require.True(t, st.IsConnected)
	require.Nil(t, st.Error)

	got, err := h.sessions.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, model.WalletSession{
		PublicKey:    walletAddress,
		SessionToken: "sess_abc",
		ConnectedAt:  1700000000000,
		WalletType:   model.WalletTypePhantom,
	}, *got)
	require.True(t, h.sessions.IsAuthenticated(ctx))
	require.False(t, h.hasKeypair(t), "keypair is single-use")

	require.Equal(t, []model.ConnectionState{
		model.StateConnecting,
		model.StateCheckingConnection,
		model.StateConnected,
	}, *h.states)
}

func TestSolflareGenericKeyName(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypeSolflare)
	require.NoError(t, h.adapter.Connect(ctx))

	resp := walletResponse(t, h.adapter.ConnectURL(), "encryption_public_key", model.ConnectPayload{
		PublicKey: walletAddress,
		Session:   "sf_session",
	})
	require.NoError(t, h.adapter.HandleConnectionResponse(ctx, resp))

	got, err := h.sessions.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, model.WalletTypeSolflare, got.WalletType)
	require.Equal(t, "sf_session", got.SessionToken)
}

func TestDirectResponse(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantKey   string
		wantToken string
	}{
		{name: "address and token", query: "address=Xyz987&auth_token=tok1", wantKey: "Xyz987", wantToken: "tok1"},
		{name: "public key only", query: "public_key=Xyz987", wantKey: "Xyz987"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, model.WalletTypeBackpack)
			require.NoError(t, h.adapter.Connect(ctx))

			require.NoError(t, h.adapter.HandleConnectionResponse(ctx, callbackBase+"/backpack?"+tt.query))
			require.Equal(t, model.StateConnected, h.adapter.State().State)

			got, err := h.sessions.Get(ctx)
			require.NoError(t, err)
			require.Equal(t, tt.wantKey, got.PublicKey)
			require.Equal(t, model.WalletTypeBackpack, got.WalletType)
			if tt.wantToken != "" {
				require.Equal(t, tt.wantToken, got.SessionToken)
			} else {
				require.Regexp(t, `^wallet_.+`, got.SessionToken)
			}
		})
	}
}

func TestDuplicateResponseIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypePhantom)
	require.NoError(t, h.adapter.Connect(ctx))

	resp := walletResponse(t, h.adapter.ConnectURL(), "phantom_encryption_public_key", model.ConnectPayload{
		PublicKey: walletAddress,
		Session:   "sess_abc",
	})
	require.NoError(t, h.adapter.HandleConnectionResponse(ctx, resp))
	require.NoError(t, h.adapter.HandleConnectionResponse(ctx, resp))

	// Outside the window the connected state still short-circuits
	h.clock.Advance(time.Minute)
	require.NoError(t, h.adapter.HandleConnectionResponse(ctx, resp))
	require.NoError(t, h.adapter.HandleConnectionResponse(ctx, callbackBase+"?address=Other"))

	require.Equal(t, 1, h.sessions.Saves())
	require.Equal(t, model.StateConnected, h.adapter.State().State)
}

func TestConcurrentResponsesSaveOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypePhantom)
	require.NoError(t, h.adapter.Connect(ctx))

	first := walletResponse(t, h.adapter.ConnectURL(), "phantom_encryption_public_key", model.ConnectPayload{
		PublicKey: walletAddress,
		Session:   "sess_first",
	})
	second := walletResponse(t, h.adapter.ConnectURL(), "phantom_encryption_public_key", model.ConnectPayload{
		PublicKey: "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Session:   "sess_second",
	})

	h.sessions.entered = make(chan struct{}, 1)
	h.sessions.release = make(chan struct{})

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- h.adapter.HandleConnectionResponse(ctx, first)
	}()

	select {
	case <-h.sessions.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first response never reached the session store")
	}
	require.Equal(t, model.StateCheckingConnection, h.adapter.State().State)

	// Same URL and a different one, both while the first is being saved
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 4; i++ {
		for _, rawURL := range []string{first, second} {
			wg.Add(1)
			go func(rawURL string) {
				defer wg.Done()
				errs <- h.adapter.HandleConnectionResponse(ctx, rawURL)
			}(rawURL)
		}
	}

	others := make(chan struct{})
	go func() {
		wg.Wait()
		close(others)
	}()
	select {
	case <-others:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent responses were not short-circuited")
	}
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	close(h.sessions.release)
	require.NoError(t, <-firstDone)

	require.Equal(t, 1, h.sessions.Saves())
	require.Equal(t, model.StateConnected, h.adapter.State().State)
	got, err := h.sessions.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, walletAddress, got.PublicKey)
	require.Equal(t, "sess_first", got.SessionToken)
}

func TestResponseWithStrayCharacters(t *testing.T) {
	tests := []struct {
		name   string
		mangle func(resp string) string
	}{
		{
			name: "escaped newline inside data",
			mangle: func(resp string) string {
				i := strings.Index(resp, "&data=") + len("&data=") + 5
				return resp[:i] + "%0A" + resp[i:]
			},
		},
		{
			name: "stray percent after data",
			mangle: func(resp string) string {
				return resp + "%"
			},
		},
		{
			name: "fragment after data",
			mangle: func(resp string) string {
				return resp + "#/connected"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, model.WalletTypePhantom)
			require.NoError(t, h.adapter.Connect(ctx))

			resp := walletResponse(t, h.adapter.ConnectURL(), "phantom_encryption_public_key", model.ConnectPayload{
				PublicKey: walletAddress,
				Session:   "sess_abc",
			})
			require.NoError(t, h.adapter.HandleConnectionResponse(ctx, tt.mangle(resp)))
			require.Equal(t, model.StateConnected, h.adapter.State().State)

			got, err := h.sessions.Get(ctx)
			require.NoError(t, err)
			require.Equal(t, walletAddress, got.PublicKey)
		})
	}
}

func TestWalletErrorTakesPrecedence(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypePhantom)
	require.NoError(t, h.adapter.Connect(ctx))

	resp := walletResponse(t, h.adapter.ConnectURL(), "phantom_encryption_public_key", model.ConnectPayload{
		PublicKey: walletAddress,
	})
	resp += "&errorCode=4001&errorMessage=User%20rejected%20the%20request"

	err := h.adapter.HandleConnectionResponse(ctx, resp)
	require.ErrorIs(t, err, model.ErrInvalidResponse)

	st := h.adapter.State()
	require.Equal(t, model.StateError, st.State)
	require.NotNil(t, st.Error)
	require.Contains(t, *st.Error, "User rejected the request (code 4001)")
	require.Equal(t, 0, h.sessions.Saves())

	// A rejected or forged response does not consume the keypair
	require.True(t, h.hasKeypair(t))
}

func TestTamperedResponse(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypePhantom)
	require.NoError(t, h.adapter.Connect(ctx))

	resp := walletResponse(t, h.adapter.ConnectURL(), "phantom_encryption_public_key", model.ConnectPayload{
		PublicKey: walletAddress,
	})
	last := resp[len(resp)-1]
	replacement := byte('1')
	if last == '1' {
		replacement = '2'
	}
	tampered := resp[:len(resp)-1] + string(replacement)

	err := h.adapter.HandleConnectionResponse(ctx, tampered)
	require.ErrorIs(t, err, model.ErrDecryptionFailure)
	require.Equal(t, model.StateError, h.adapter.State().State)

	got, err := h.sessions.Get(ctx)
	require.NoError(t, err)
	require.Nil(t, got)

	// The genuine response still connects
	require.NoError(t, h.adapter.HandleConnectionResponse(ctx, resp))
	require.Equal(t, model.StateConnected, h.adapter.State().State)
}

func TestResponseWithoutFields(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypePhantom)
	require.NoError(t, h.adapter.Connect(ctx))

	err := h.adapter.HandleConnectionResponse(ctx, callbackBase+"/phantom?foo=bar")
	require.ErrorIs(t, err, model.ErrInvalidResponse)
	require.Equal(t, model.StateError, h.adapter.State().State)
}

func TestSessionSaveFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypePhantom)
	h.sessions.fail = true
	require.NoError(t, h.adapter.Connect(ctx))

	err := h.adapter.HandleConnectionResponse(ctx, callbackBase+"?address=Xyz987&session=tok")
	require.ErrorIs(t, err, model.ErrStorageFailure)

	st := h.adapter.State()
	require.Equal(t, model.StateError, st.State)
	require.False(t, st.IsConnected)
	require.False(t, h.hasKeypair(t))
	require.False(t, h.sessions.IsAuthenticated(ctx))
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypePhantom)
	require.NoError(t, h.adapter.Connect(ctx))
	require.NoError(t, h.adapter.HandleConnectionResponse(ctx, callbackBase+"?address=Xyz987&session=tok"))
	require.True(t, h.sessions.IsAuthenticated(ctx))

	require.NoError(t, h.adapter.Disconnect(ctx))

	st := h.adapter.State()
	require.Equal(t, model.StateDisconnected, st.State)
	require.False(t, st.IsConnected)
	require.Empty(t, h.adapter.ConnectURL())
	require.False(t, h.sessions.IsAuthenticated(ctx))
	require.False(t, h.hasKeypair(t))

	// Disconnecting twice is harmless
	require.NoError(t, h.adapter.Disconnect(ctx))
}

func TestConnectInProgress(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypePhantom)
	h.opener.entered = make(chan struct{})
	h.opener.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- h.adapter.Connect(ctx)
	}()
	<-h.opener.entered

	err := h.adapter.Connect(ctx)
	require.ErrorIs(t, err, model.ErrConnectInProgress)
	require.Equal(t, model.StateConnecting, h.adapter.State().State)

	close(h.opener.release)
	require.NoError(t, <-done)

	// Once dispatched a new Connect supersedes the old request
	h.opener.entered = nil
	require.NoError(t, h.adapter.Connect(ctx))
	require.Len(t, h.opener.Opened(), 2)
}

func TestRefreshFromSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypePhantom)

	ok, err := h.adapter.RefreshFromSession(ctx)
	require.NoError(t, err)
	require.False(t, ok, "not connecting")

	require.NoError(t, h.adapter.Connect(ctx))

	// A session from another provider does not count
	require.True(t, h.sessions.Store.SaveWithAuth(ctx, model.WalletSession{
		PublicKey:   walletAddress,
		ConnectedAt: h.clock.Now().UnixMilli(),
		WalletType:  model.WalletTypeSolflare,
	}))
	ok, err = h.adapter.RefreshFromSession(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// Neither does one older than the connect attempt
	require.True(t, h.sessions.Store.SaveWithAuth(ctx, model.WalletSession{
		PublicKey:   walletAddress,
		ConnectedAt: h.clock.Now().Add(-time.Hour).UnixMilli(),
		WalletType:  model.WalletTypePhantom,
	}))
	ok, err = h.adapter.RefreshFromSession(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	h.clock.Advance(time.Second)
	require.True(t, h.sessions.Store.SaveWithAuth(ctx, model.WalletSession{
		PublicKey:   walletAddress,
		ConnectedAt: h.clock.Now().UnixMilli(),
		WalletType:  model.WalletTypePhantom,
	}))
	ok, err = h.adapter.RefreshFromSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.StateConnected, h.adapter.State().State)
	require.False(t, h.hasKeypair(t))
}

func TestMissingKeypairCannotDecrypt(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, model.WalletTypePhantom)
	require.NoError(t, h.adapter.Connect(ctx))

	resp := walletResponse(t, h.adapter.ConnectURL(), "phantom_encryption_public_key", model.ConnectPayload{
		PublicKey: walletAddress,
	})
	require.NoError(t, crypto.ClearKeypair(ctx, h.keys, h.adapter.Config().StorageKey))

	err := h.adapter.HandleConnectionResponse(ctx, resp)
	require.ErrorIs(t, err, model.ErrDecryptionFailure)
	require.True(t, h.hasKeypair(t), "a replacement keypair is stored")
}

func TestProviderConfigs(t *testing.T) {
	s := wallet.Settings{AppURL: "https://ride.example.app", RedirectBase: callbackBase + "/"}

	for _, wt := range wallet.SupportedWallets() {
		cfg, err := wallet.Config(wt, s)
		require.NoError(t, err)
		require.Equal(t, wt, cfg.Type)
		require.Equal(t, string(wt)+"://", cfg.DeepLink.Scheme)
		require.Equal(t, callbackBase+"/"+string(wt), cfg.DeepLink.RedirectLink)
		require.Equal(t, model.ClusterDevnet, cfg.DeepLink.Cluster)
		require.Equal(t, string(wt)+"_keypair", cfg.StorageKey)
		require.True(t, cfg.Encryption.RequiresKeypair)
	}

	_, err := wallet.Config(model.WalletTypeOther, s)
	require.Error(t, err)
	require.False(t, errors.Is(err, model.ErrWalletNotInstalled))
}
