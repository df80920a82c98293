package model

import (
	"errors"
	"fmt"
)

// ErrorResponse is the consistent JSON structure for all API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var (
	// ErrWalletNotInstalled means the OS cannot resolve the provider's URL scheme
	ErrWalletNotInstalled = errors.New("wallet is not installed")
	// ErrKeyAgreement means the peer public key could not be decoded
	ErrKeyAgreement = errors.New("key agreement failed")
	// ErrDecryptionFailure means the authentication tag did not verify or input was malformed
	ErrDecryptionFailure = errors.New("decryption failed")
	// ErrMissingKeypair means no usable local keypair exists for decryption
	ErrMissingKeypair = errors.New("missing keypair")
	// ErrInvalidResponse means the wallet signaled an error or required fields are absent
	ErrInvalidResponse = errors.New("invalid wallet response")
	// ErrStorageFailure means a session or keypair could not be persisted
	ErrStorageFailure = errors.New("storage failure")
	// ErrConnectInProgress means another Connect call is still dispatching
	ErrConnectInProgress = errors.New("connect already in progress")
	// ErrNoSession means no wallet is connected
	ErrNoSession = errors.New("no wallet session")
)

// ProviderError prefixes an error with the wallet it came from
type ProviderError struct {
	Wallet WalletType
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Wallet.DisplayName(), e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ErrorCode maps an error to a stable code for API responses
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrWalletNotInstalled):
		return "WALLET_NOT_INSTALLED"
	case errors.Is(err, ErrKeyAgreement):
		return "KEY_AGREEMENT_ERROR"
	case errors.Is(err, ErrDecryptionFailure):
		return "DECRYPTION_FAILURE"
	case errors.Is(err, ErrMissingKeypair):
		return "MISSING_KEYPAIR"
	case errors.Is(err, ErrInvalidResponse):
		return "INVALID_RESPONSE"
	case errors.Is(err, ErrStorageFailure):
		return "STORAGE_FAILURE"
	case errors.Is(err, ErrConnectInProgress):
		return "CONNECT_IN_PROGRESS"
	case errors.Is(err, ErrNoSession):
		return "NO_SESSION"
	default:
		return ""
	}
}
