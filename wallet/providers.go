package wallet

import (
	"fmt"
	"strings"

	"github.com/AlexZinkM/walletlink/internal/model"
)

const encryptionType = "x25519-xsalsa20-poly1305"

// Settings are the app-wide values shared by every provider config
type Settings struct {
	Cluster      model.Cluster
	AppURL       string
	RedirectBase string // provider name is appended as a path segment
}

type provider struct {
	scheme     string
	connectURL string
}

var providers = map[model.WalletType]provider{
	model.WalletTypePhantom:  {scheme: "phantom://", connectURL: "https://phantom.app/ul"},
	model.WalletTypeSolflare: {scheme: "solflare://", connectURL: "https://solflare.com/ul"},
	model.WalletTypeBackpack: {scheme: "backpack://", connectURL: "https://backpack.app/ul"},
}

// SupportedWallets lists the providers with a built-in config
func SupportedWallets() []model.WalletType {
	return []model.WalletType{model.WalletTypePhantom, model.WalletTypeSolflare, model.WalletTypeBackpack}
}

// Config returns the static adapter config for a provider
func Config(t model.WalletType, s Settings) (model.AdapterConfig, error) {
	p, ok := providers[t]
	if !ok {
		return model.AdapterConfig{}, fmt.Errorf("unsupported wallet %q", t)
	}

	cluster := s.Cluster
	if cluster == "" {
		cluster = model.ClusterDevnet
	}

	return model.AdapterConfig{
		Type: t,
		DeepLink: model.DeepLinkConfig{
			Scheme:       p.scheme,
			ConnectURL:   p.connectURL,
			RedirectLink: strings.TrimRight(s.RedirectBase, "/") + "/" + string(t),
			AppURL:       s.AppURL,
			Cluster:      cluster,
		},
		Encryption: model.EncryptionConfig{
			Type:            encryptionType,
			RequiresKeypair: true,
		},
		StorageKey: string(t) + "_keypair",
	}, nil
}

// NewPhantom returns an adapter for Phantom
func NewPhantom(s Settings, deps Deps, opts ...Option) *Adapter {
	return mustNew(model.WalletTypePhantom, s, deps, opts...)
}

// NewSolflare returns an adapter for Solflare
func NewSolflare(s Settings, deps Deps, opts ...Option) *Adapter {
	return mustNew(model.WalletTypeSolflare, s, deps, opts...)
}

// NewBackpack returns an adapter for Backpack
func NewBackpack(s Settings, deps Deps, opts ...Option) *Adapter {
	return mustNew(model.WalletTypeBackpack, s, deps, opts...)
}

// NewForType returns an adapter for any supported provider
func NewForType(t model.WalletType, s Settings, deps Deps, opts ...Option) (*Adapter, error) {
	cfg, err := Config(t, s)
	if err != nil {
		return nil, err
	}
	return New(cfg, deps, opts...), nil
}

func mustNew(t model.WalletType, s Settings, deps Deps, opts ...Option) *Adapter {
	a, err := NewForType(t, s, deps, opts...)
	if err != nil {
		panic(err)
	}
	return a
}
