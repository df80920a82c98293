// Package deeplink builds outbound wallet URLs and parses the URLs wallets send back.
package deeplink

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/AlexZinkM/walletlink/internal/model"
)

const (
	connectPath    = "/v1/connect"
	disconnectPath = "/v1/disconnect"

	paramErrorCode    = "errorCode"
	paramErrorMessage = "errorMessage"
	paramNonce        = "nonce"
	paramData         = "data"
)

// Generic names tried after the provider's own, in this order
var fallbackEncryptionKeyParams = []string{
	"wallet_encryption_public_key",
	"encryption_public_key",
	"phantom_encryption_public_key",
	"solflare_encryption_public_key",
	"backpack_encryption_public_key",
}

var (
	directPublicKeyParams = []string{"public_key", "address", "wallet_address"}
	directTokenParams     = []string{"session", "session_token", "auth_token"}
)

// Param is one query parameter, in the order it appeared
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list
type Params []Param

// Get returns the first value for key
func (p Params) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// first returns the first non-empty value among keys, in keys order
func (p Params) first(keys ...string) string {
	for _, k := range keys {
		if v, ok := p.Get(k); ok && v != "" {
			return v
		}
	}
	return ""
}

// ConnectionFields are the encrypted-path fields of a connect response
type ConnectionFields struct {
	PeerPublicKey string
	Nonce         string
	Data          string
}

// Complete reports whether all three fields are present
func (f ConnectionFields) Complete() bool {
	return f.PeerPublicKey != "" && f.Nonce != "" && f.Data != ""
}

// ValidationResult is the outcome of ValidateResponse
type ValidationResult struct {
	Valid bool
	Error string
}

// queryBuilder keeps parameters in insertion order
type queryBuilder struct {
	sb strings.Builder
}

func (q *queryBuilder) add(key, value string) {
	if q.sb.Len() > 0 {
		q.sb.WriteByte('&')
	}
	q.sb.WriteString(url.QueryEscape(key))
	q.sb.WriteByte('=')
	q.sb.WriteString(url.QueryEscape(value))
}

func endpoint(cfg model.AdapterConfig, path string) (string, error) {
	base := strings.TrimRight(cfg.DeepLink.ConnectURL, "/")
	if base == "" {
		return "", fmt.Errorf("%s connect URL is not configured", cfg.Type.DisplayName())
	}
	return base + path, nil
}

// BuildConnectURL assembles the provider's connect request
func BuildConnectURL(cfg model.AdapterConfig, dappEncryptionPublicKey string) (string, error) {
	if dappEncryptionPublicKey == "" {
		return "", fmt.Errorf("dapp encryption public key is empty")
	}
	base, err := endpoint(cfg, connectPath)
	if err != nil {
		return "", err
	}

	var q queryBuilder
	q.add("dapp_encryption_public_key", dappEncryptionPublicKey)
	q.add("cluster", string(cfg.DeepLink.Cluster))
	q.add("app_url", cfg.DeepLink.AppURL)
	q.add("redirect_link", cfg.DeepLink.RedirectLink)

	return base + "?" + q.sb.String(), nil
}

// BuildDisconnectURL assembles the provider's disconnect request.
// payload is the encrypted {"session": token} object, nonce its box nonce.
func BuildDisconnectURL(cfg model.AdapterConfig, dappEncryptionPublicKey, nonce, payload string) (string, error) {
	if dappEncryptionPublicKey == "" || nonce == "" || payload == "" {
		return "", fmt.Errorf("disconnect requires public key, nonce and payload")
	}
	base, err := endpoint(cfg, disconnectPath)
	if err != nil {
		return "", err
	}

	var q queryBuilder
	q.add("dapp_encryption_public_key", dappEncryptionPublicKey)
	q.add(paramNonce, nonce)
	q.add("redirect_link", cfg.DeepLink.RedirectLink)
	q.add("payload", payload)

	return base + "?" + q.sb.String(), nil
}

// Parse splits rawURL on the first '?' and returns its query parameters in order.
// A URL without a query string yields an empty list.
func Parse(rawURL string) Params {
	i := strings.IndexByte(rawURL, '?')
	if i < 0 || i == len(rawURL)-1 {
		return Params{}
	}

	query := rawURL[i+1:]
	params := make(Params, 0, strings.Count(query, "&")+1)
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		params = append(params, Param{Key: unescape(key), Value: unescape(value)})
	}
	return params
}

// unescape decodes percent-escapes, keeping the raw text when it is not valid escaping
func unescape(s string) string {
	if out, err := url.QueryUnescape(s); err == nil {
		return out
	}
	return s
}

// ValidateResponse fails when the wallet reported an error. This runs before any decryption.
func ValidateResponse(params Params) ValidationResult {
	code, hasCode := params.Get(paramErrorCode)
	msg, hasMsg := params.Get(paramErrorMessage)
	if !hasCode && !hasMsg {
		return ValidationResult{Valid: true}
	}

	if msg == "" {
		msg = "wallet returned an error"
	}
	if code != "" {
		msg = fmt.Sprintf("%s (code %s)", msg, code)
	}
	return ValidationResult{Valid: false, Error: msg}
}

// EncryptionKeyParam is the provider's own name for its encryption public key
func EncryptionKeyParam(walletType model.WalletType) string {
	switch walletType {
	case model.WalletTypeBackpack:
		return "wallet_encryption_public_key"
	default:
		return string(walletType) + "_encryption_public_key"
	}
}

// ExtractConnectionFields resolves the encrypted-path fields. The provider's canonical
// key name wins, then the generic names in fallbackEncryptionKeyParams order.
func ExtractConnectionFields(params Params, walletType model.WalletType) ConnectionFields {
	names := make([]string, 0, len(fallbackEncryptionKeyParams)+1)
	names = append(names, EncryptionKeyParam(walletType))
	for _, n := range fallbackEncryptionKeyParams {
		if n != names[0] {
			names = append(names, n)
		}
	}

	return ConnectionFields{
		PeerPublicKey: params.first(names...),
		Nonce:         params.first(paramNonce),
		Data:          params.first(paramData),
	}
}

// ExtractDirectFields reads an unencrypted response: the wallet address and, if sent, a token
func ExtractDirectFields(params Params) (publicKey, token string) {
	return params.first(directPublicKeyParams...), params.first(directTokenParams...)
}
