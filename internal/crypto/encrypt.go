package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"

	"github.com/AlexZinkM/walletlink/internal/model"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/scrypt"
)

const (
	KeySize   = 32 // X25519 keys and the precomputed box key
	NonceSize = 24 // XSalsa20 nonce

	gcmNonceLen = 12
	saltLen     = 32
)

// KDFParams are the scrypt parameters used to derive a store sealing key
type KDFParams struct {
	N int
	R int
	P int
}

// DefaultKDFParams matches the cost used for wallet files: N=2^18 (~256MB RAM, 0.5-2s)
var DefaultKDFParams = KDFParams{N: 1 << 18, R: 8, P: 1}

// EncryptedPayload is a box ciphertext and its nonce, both base58
type EncryptedPayload struct {
	Data  string `json:"data"`
	Nonce string `json:"nonce"`
}

// CreateSharedSecret combines the peer's X25519 public key with our X25519 secret
// into the symmetric key used by Encrypt and Decrypt.
func CreateSharedSecret(peerPublicKeyBase58 string, ownSecretKey *[KeySize]byte) (*[KeySize]byte, error) {
	if ownSecretKey == nil {
		return nil, fmt.Errorf("%w: own secret key is nil", model.ErrKeyAgreement)
	}

	peer, err := base58.Decode(SanitizeBase58(peerPublicKeyBase58))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode peer public key: %v", model.ErrKeyAgreement, err)
	}
	if len(peer) != KeySize {
		return nil, fmt.Errorf("%w: peer public key must be %d bytes, got %d", model.ErrKeyAgreement, KeySize, len(peer))
	}

	var peerKey [KeySize]byte
	copy(peerKey[:], peer)

	shared := new([KeySize]byte)
	box.Precompute(shared, &peerKey, ownSecretKey)
	return shared, nil
}

// Encrypt marshals payload to JSON and seals it under sharedSecret with a fresh random nonce
func Encrypt(payload any, sharedSecret *[KeySize]byte) (*EncryptedPayload, error) {
	if sharedSecret == nil {
		return nil, fmt.Errorf("%w: shared secret is nil", model.ErrKeyAgreement)
	}

	plaintext, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	defer clear(plaintext)

	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := box.SealAfterPrecomputation(nil, plaintext, &nonce, sharedSecret)

	return &EncryptedPayload{
		Data:  base58.Encode(ciphertext),
		Nonce: base58.Encode(nonce[:]),
	}, nil
}

// DeriveStoreKey derives an AES-256 key from a passphrase with scrypt
// passphrase must be []byte for security (caller should zero it after use)
func DeriveStoreKey(passphrase, salt []byte, params KDFParams) ([]byte, error) {
	key, err := scrypt.Key(passphrase, salt, params.N, params.R, params.P, KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// NewSalt returns a random scrypt salt
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// SealBytes encrypts plaintext with AES-GCM under key and returns nonce and ciphertext
func SealBytes(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce = make([]byte, gcmNonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return nonce, aesGCM.Seal(nil, nonce, plaintext, nil), nil
}
