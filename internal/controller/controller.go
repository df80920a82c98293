// Package controller bridges inbound deep-link URLs and a session poll loop to the
// wallet adapters, and publishes every adapter state change to subscribers.
package controller

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/AlexZinkM/walletlink/internal/deeplink"
	"github.com/AlexZinkM/walletlink/internal/model"
	"github.com/AlexZinkM/walletlink/wallet"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval = time.Second
	urlQueueSize        = 16
)

var (
	ErrClosed        = errors.New("controller is closed")
	ErrUnknownWallet = errors.New("unknown wallet")
)

// Adapter is what the controller needs from a wallet adapter
type Adapter interface {
	wallet.Connector
	ConnectURL() string
	RefreshFromSession(ctx context.Context) (bool, error)
}

type Option func(*Controller)

// WithPollInterval sets how often a connecting adapter rechecks the stored session
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// Controller owns the inbound URL loop, the per-wallet poll loops and the state
// broadcaster. Close tears all of them down together.
type Controller struct {
	pollInterval time.Duration
	events       *Broadcaster[model.WalletConnectionState]
	urls         chan string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	adapters map[model.WalletType]Adapter
	order    []model.WalletType
	polls    map[model.WalletType]context.CancelFunc
	started  bool
	closed   bool
}

func New(opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		pollInterval: DefaultPollInterval,
		events:       NewBroadcaster[model.WalletConnectionState](),
		urls:         make(chan string, urlQueueSize),
		ctx:          ctx,
		cancel:       cancel,
		adapters:     make(map[model.WalletType]Adapter),
		polls:        make(map[model.WalletType]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds adapters. Build them with wallet.WithStateListener(c.Notify) so the
// controller sees their state changes.
func (c *Controller) Register(adapters ...Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range adapters {
		if _, ok := c.adapters[a.Type()]; !ok {
			c.order = append(c.order, a.Type())
		}
		c.adapters[a.Type()] = a
	}
}

// Start runs the inbound URL loop. initialURL, if set, is the URL the process was
// launched with and is handled first.
func (c *Controller) Start(initialURL string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return errors.New("controller already started")
	}
	c.started = true
	c.wg.Add(1)
	c.mu.Unlock()

	go c.listen()

	if initialURL != "" {
		return c.Deliver(initialURL)
	}
	return nil
}

// Deliver queues an inbound URL. URLs are handled one at a time in arrival order.
func (c *Controller) Deliver(rawURL string) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}

	select {
	case c.urls <- rawURL:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	}
}

func (c *Controller) listen() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case rawURL := <-c.urls:
			c.handleURL(rawURL)
		}
	}
}

func (c *Controller) handleURL(rawURL string) {
	targets := c.route(rawURL)
	if len(targets) == 0 {
		log.Debug("inbound url matches no wallet, ignoring")
		return
	}
	for _, a := range targets {
		if err := a.HandleConnectionResponse(c.ctx, rawURL); err != nil {
			// already reflected in the adapter state
			log.WithError(err).WithField("wallet", a.Type()).Debug("wallet response rejected")
		}
	}
}

// route picks the adapters an inbound URL is meant for: the provider named by the
// last path segment, else the provider whose own key parameter is present, else
// every adapter waiting for a wallet.
func (c *Controller) route(rawURL string) []Adapter {
	c.mu.Lock()
	byType := make(map[model.WalletType]Adapter, len(c.adapters))
	for t, a := range c.adapters {
		byType[t] = a
	}
	order := append([]model.WalletType(nil), c.order...)
	c.mu.Unlock()

	if t, ok := providerFromPath(rawURL); ok {
		if a, ok := byType[t]; ok {
			return []Adapter{a}
		}
	}

	params := deeplink.Parse(rawURL)
	for _, t := range order {
		if _, ok := params.Get(deeplink.EncryptionKeyParam(t)); ok {
			return []Adapter{byType[t]}
		}
	}

	// c.mu must not be held here: adapters call Notify with their notify lock held
	var waiting []Adapter
	for _, t := range order {
		a := byType[t]
		if a.State().State == model.StateConnecting {
			waiting = append(waiting, a)
		}
	}
	return waiting
}

func providerFromPath(rawURL string) (model.WalletType, bool) {
	base, _, _ := strings.Cut(rawURL, "?")
	u, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	p := u.Path
	if p == "" {
		// custom schemes: myapp://phantom
		p = u.Host
	}
	return model.ParseWalletType(path.Base(p))
}

// Notify receives adapter state changes. It publishes them and starts or stops the
// wallet's poll loop.
func (c *Controller) Notify(st model.WalletConnectionState) {
	c.events.Publish(st)

	if st.State == model.StateConnecting {
		c.startPoll(st.WalletType)
		return
	}
	if st.State != model.StateCheckingConnection {
		c.stopPoll(st.WalletType)
	}
}

func (c *Controller) startPoll(t model.WalletType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	a, ok := c.adapters[t]
	if !ok {
		return
	}
	if _, running := c.polls[t]; running {
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.polls[t] = cancel
	c.wg.Add(1)
	go c.poll(ctx, a)
}

func (c *Controller) stopPoll(t model.WalletType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.polls[t]; ok {
		cancel()
		delete(c.polls, t)
	}
}

func (c *Controller) polling(t model.WalletType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.polls[t]
	return ok
}

// poll rechecks the stored session until cancelled. Notify cancels it once the
// adapter leaves CONNECTING.
func (c *Controller) poll(ctx context.Context, a Adapter) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.RefreshFromSession(ctx); err != nil {
				log.WithError(err).WithField("wallet", a.Type()).Warn("failed to check stored session")
			}
		}
	}
}

func (c *Controller) adapter(t model.WalletType) (Adapter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	a, ok := c.adapters[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWallet, t)
	}
	return a, nil
}

// Adapter returns the registered adapter for t
func (c *Controller) Adapter(t model.WalletType) (Adapter, error) {
	return c.adapter(t)
}

// Connect starts a connection with wallet t and returns the dispatched request
func (c *Controller) Connect(ctx context.Context, t model.WalletType) (model.ConnectResponse, error) {
	a, err := c.adapter(t)
	if err != nil {
		return model.ConnectResponse{}, err
	}
	if err := a.Connect(ctx); err != nil {
		return model.ConnectResponse{State: a.State()}, err
	}
	return model.ConnectResponse{ConnectURL: a.ConnectURL(), State: a.State()}, nil
}

func (c *Controller) Disconnect(ctx context.Context, t model.WalletType) error {
	a, err := c.adapter(t)
	if err != nil {
		return err
	}
	return a.Disconnect(ctx)
}

func (c *Controller) State(t model.WalletType) (model.WalletConnectionState, error) {
	a, err := c.adapter(t)
	if err != nil {
		return model.WalletConnectionState{}, err
	}
	return a.State(), nil
}

// States returns every registered wallet's state in registration order
func (c *Controller) States() []model.WalletConnectionState {
	c.mu.Lock()
	adapters := make([]Adapter, 0, len(c.order))
	for _, t := range c.order {
		adapters = append(adapters, c.adapters[t])
	}
	c.mu.Unlock()

	out := make([]model.WalletConnectionState, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, a.State())
	}
	return out
}

func (c *Controller) Subscribe(buf int) <-chan model.WalletConnectionState {
	return c.events.Subscribe(buf)
}

func (c *Controller) Unsubscribe(ch <-chan model.WalletConnectionState) {
	c.events.Unsubscribe(ch)
}

// Close stops the URL loop and every poll loop, waits for them, and closes all
// subscriber channels. Safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for t, cancel := range c.polls {
		cancel()
		delete(c.polls, t)
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	c.events.Close()
}
