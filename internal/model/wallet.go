package model

// WalletType identifies a wallet provider
type WalletType string

const (
	WalletTypePhantom  WalletType = "phantom"
	WalletTypeSolflare WalletType = "solflare"
	WalletTypeBackpack WalletType = "backpack"
	WalletTypeOther    WalletType = "other"
)

// DisplayName returns the name used to prefix user-facing messages
func (t WalletType) DisplayName() string {
	switch t {
	case WalletTypePhantom:
		return "Phantom"
	case WalletTypeSolflare:
		return "Solflare"
	case WalletTypeBackpack:
		return "Backpack"
	default:
		return "Wallet"
	}
}

// ParseWalletType converts a path or query value to a WalletType.
// Returns false for unknown providers.
func ParseWalletType(s string) (WalletType, bool) {
	switch WalletType(s) {
	case WalletTypePhantom, WalletTypeSolflare, WalletTypeBackpack:
		return WalletType(s), true
	}
	return "", false
}

// Cluster is the Solana network passed to the wallet
type Cluster string

const (
	ClusterDevnet      Cluster = "devnet"
	ClusterTestnet     Cluster = "testnet"
	ClusterMainnetBeta Cluster = "mainnet-beta"
)

// DeepLinkConfig describes how to reach a provider and how it reaches us back
type DeepLinkConfig struct {
	Scheme       string  `json:"scheme"`       // e.g. "phantom://", used for the installation probe
	ConnectURL   string  `json:"connectUrl"`   // provider base URL, "/v1/connect" is appended
	RedirectLink string  `json:"redirectLink"` // where the wallet sends its response
	AppURL       string  `json:"appUrl"`       // identifies the dapp to the wallet
	Cluster      Cluster `json:"cluster"`
}

// EncryptionConfig describes the response encryption used by a provider
type EncryptionConfig struct {
	Type            string `json:"type"` // "x25519-xsalsa20-poly1305"
	RequiresKeypair bool   `json:"requiresKeypair"`
}

// AdapterConfig is the static per-provider configuration.
// It is built once when the adapter is created and never mutated.
type AdapterConfig struct {
	Type       WalletType       `json:"type"`
	DeepLink   DeepLinkConfig   `json:"deepLink"`
	Encryption EncryptionConfig `json:"encryption"`
	StorageKey string           `json:"storageKey"` // "<provider>_keypair"
}

// WalletSession is the durable result of a successful handshake
type WalletSession struct {
	PublicKey    string     `json:"publicKey"` // wallet address, base58
	SessionToken string     `json:"sessionToken"`
	ConnectedAt  int64      `json:"connectedAt"` // epoch millis
	WalletType   WalletType `json:"walletType"`
}

// StoredKeypair is the persisted form of an ephemeral keypair
type StoredKeypair struct {
	PublicKey string `json:"publicKey"` // base58
	SecretKey string `json:"secretKey"` // base58, 64 bytes (seed || public key)
}

// ConnectPayload is the decrypted body of an encrypted connect response
type ConnectPayload struct {
	PublicKey string `json:"public_key"`
	Session   string `json:"session"`
}
