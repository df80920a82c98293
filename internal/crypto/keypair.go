package crypto

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/AlexZinkM/walletlink/internal/model"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/curve25519"
)

// Store is the subset of the scoped key-value store the keypair manager needs
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Keypair is an ephemeral Ed25519 signing keypair.
// SecretKey holds 64 bytes: the 32-byte seed followed by the public key.
type Keypair struct {
	PublicKey solana.PublicKey
	SecretKey solana.PrivateKey
}

// EncryptionKeypair is the X25519 keypair used for key agreement
type EncryptionKeypair struct {
	PublicKey [KeySize]byte
	SecretKey [KeySize]byte
}

// Wipe zeroes the secret key
func (k *EncryptionKeypair) Wipe() {
	clear(k.SecretKey[:])
}

// PublicKeyBase58 returns the X25519 public key as base58
func (k *EncryptionKeypair) PublicKeyBase58() string {
	return base58.Encode(k.PublicKey[:])
}

// GenerateKeypair creates a fresh keypair from crypto/rand
func GenerateKeypair() (*Keypair, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return &Keypair{
		PublicKey: priv.PublicKey(),
		SecretKey: priv,
	}, nil
}

// StoreKeypair writes the keypair under storageKey, replacing any previous value
func StoreKeypair(ctx context.Context, store Store, storageKey string, kp *Keypair) error {
	raw, err := json.Marshal(model.StoredKeypair{
		PublicKey: kp.PublicKey.String(),
		SecretKey: base58.Encode(kp.SecretKey),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal keypair: %w", err)
	}
	defer clear(raw)

	if err := store.Set(ctx, storageKey, string(raw)); err != nil {
		return fmt.Errorf("%w: failed to store keypair: %v", model.ErrStorageFailure, err)
	}
	return nil
}

// RetrieveKeypair reads the keypair stored under storageKey.
// Returns nil without error when the entry is absent or malformed.
func RetrieveKeypair(ctx context.Context, store Store, storageKey string) (*Keypair, error) {
	raw, ok, err := store.Get(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var stored model.StoredKeypair
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, nil
	}

	pub, err := base58.Decode(stored.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, nil
	}
	secret, err := base58.Decode(stored.SecretKey)
	if err != nil || len(secret) != ed25519.PrivateKeySize {
		return nil, nil
	}

	// Public key must be a curve point and match the seed
	if _, err := edwards25519.NewIdentityPoint().SetBytes(pub); err != nil {
		return nil, nil
	}
	derived := ed25519.NewKeyFromSeed(secret[:ed25519.SeedSize])
	defer clear(derived)
	if !bytes.Equal(derived[ed25519.SeedSize:], pub) {
		return nil, nil
	}

	return &Keypair{
		PublicKey: solana.PublicKeyFromBytes(pub),
		SecretKey: solana.PrivateKey(secret),
	}, nil
}

// ClearKeypair removes the keypair. Clearing an absent key is not an error.
func ClearKeypair(ctx context.Context, store Store, storageKey string) error {
	if err := store.Delete(ctx, storageKey); err != nil {
		return fmt.Errorf("failed to clear keypair: %w", err)
	}
	return nil
}

// DeriveEncryptionKeypair turns the signing keypair into the X25519 keypair wallets expect.
// Only the low 32 bytes (the seed) of the secret key are used.
func DeriveEncryptionKeypair(kp *Keypair) (*EncryptionKeypair, error) {
	if kp == nil || len(kp.SecretKey) < KeySize {
		return nil, model.ErrMissingKeypair
	}

	out := &EncryptionKeypair{}
	copy(out.SecretKey[:], kp.SecretKey[:KeySize])

	pub, err := curve25519.X25519(out.SecretKey[:], curve25519.Basepoint)
	if err != nil {
		out.Wipe()
		return nil, fmt.Errorf("failed to derive encryption public key: %w", err)
	}
	copy(out.PublicKey[:], pub)
	return out, nil
}
