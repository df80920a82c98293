package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// Note: Store passphrase is prompted at runtime and stored in memory - use GetStorePassphraseBytes()
type Config struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	Cluster         string        `envconfig:"WALLET_CLUSTER" default:"devnet"`
	AppURL          string        `envconfig:"WALLET_APP_URL" default:"https://ride.example.app"`
	RedirectBase    string        `envconfig:"WALLET_REDIRECT_BASE" default:"http://localhost:8080/callback"`
	DuplicateWindow time.Duration `envconfig:"WALLET_DUPLICATE_WINDOW" default:"2s"`
	PollInterval    time.Duration `envconfig:"WALLET_POLL_INTERVAL" default:"1s"`
	StoreBackend    string        `envconfig:"STORE_BACKEND" default:"file"`
	StorePath       string        `envconfig:"STORE_PATH" default:"./walletlink-data"`
	StoreEncrypt    bool          `envconfig:"STORE_ENCRYPT" default:"false"`
	SolanaRPCURL    string        `envconfig:"SOLANA_RPC_URL" default:"https://api.devnet.solana.com"`
	PriceAPIURL     string        `envconfig:"PRICE_API_URL" default:"https://api.coingecko.com/api/v3"`
	PriceCurrency   string        `envconfig:"PRICE_CURRENCY" default:"usd"` // empty disables the price lookup
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
}

// Validate checks values envconfig cannot check by itself
func (c *Config) Validate() error {
	switch c.Cluster {
	case "devnet", "testnet", "mainnet-beta":
	default:
		return fmt.Errorf("WALLET_CLUSTER must be devnet, testnet or mainnet-beta, got %q", c.Cluster)
	}
	switch c.StoreBackend {
	case "memory", "file", "badger", "sqlite":
	default:
		return fmt.Errorf("STORE_BACKEND must be memory, file, badger or sqlite, got %q", c.StoreBackend)
	}
	if c.DuplicateWindow < 0 {
		return errors.New("WALLET_DUPLICATE_WINDOW cannot be negative")
	}
	if c.PollInterval <= 0 {
		return errors.New("WALLET_POLL_INTERVAL must be positive")
	}
	return nil
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	c := &Config{}
	if err := envconfig.Process("", c); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	cfg = c
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

// GetPort returns port from configuration
func GetPort() string {
	return Get().Port
}

// GetSolanaRPCURL returns Solana RPC URL from configuration
func GetSolanaRPCURL() string {
	return Get().SolanaRPCURL
}

var passphraseBytes []byte

// PromptForPassphrase prompts the user for the store passphrase in the terminal.
// The passphrase is read without echoing (hidden input) and stored in memory.
// Call this at startup before any store is opened.
func PromptForPassphrase() error {
	raw, err := PromptSecret("Enter store passphrase: ")
	if err != nil {
		return err
	}
	passphraseBytes = raw
	return nil
}

// PromptSecret reads a non-empty line from the terminal without echo.
// Caller must zero the returned slice after use.
func PromptSecret(prompt string) ([]byte, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("stdin is not a terminal: run the app interactively to enter the store passphrase")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("passphrase cannot be empty")
	}

	out := make([]byte, len(raw))
	copy(out, raw)
	clear(raw)
	return out, nil
}

// GetStorePassphraseBytes returns the passphrase stored in memory (from PromptForPassphrase).
// Returns an error if the passphrase was not set.
// Caller must zero the returned slice after use for security.
func GetStorePassphraseBytes() ([]byte, error) {
	if len(passphraseBytes) == 0 {
		return nil, errors.New("passphrase not set: call PromptForPassphrase at startup")
	}
	out := make([]byte, len(passphraseBytes))
	copy(out, passphraseBytes)
	return out, nil
}
