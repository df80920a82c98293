package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/AlexZinkM/walletlink/internal/model"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// SanitizeBase58 drops a '#'-delimited suffix and every character outside the base58 alphabet.
// Deep-link URLs are sometimes escaped imperfectly by the OS or the wallet.
func SanitizeBase58(s string) string {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(base58Alphabet, r) {
			return r
		}
		return -1
	}, s)
}

// ValidateParams is a cheap structural check run before any crypto. Each value must
// still hold base58 text after the stripping Decrypt applies.
func ValidateParams(peerPublicKey, nonce, data string) bool {
	for _, v := range []string{peerPublicKey, nonce, data} {
		if SanitizeBase58(v) == "" {
			return false
		}
	}
	return true
}

// Decrypt opens a base58 box ciphertext under sharedSecret and unmarshals the JSON plaintext into v.
// Any failure wraps model.ErrDecryptionFailure.
func Decrypt(dataBase58, nonceBase58 string, sharedSecret *[KeySize]byte, v any) error {
	if sharedSecret == nil {
		return fmt.Errorf("%w: shared secret is nil", model.ErrDecryptionFailure)
	}

	ciphertext, err := base58.Decode(SanitizeBase58(dataBase58))
	if err != nil || len(ciphertext) <= box.Overhead {
		return fmt.Errorf("%w: malformed ciphertext", model.ErrDecryptionFailure)
	}

	nonceBytes, err := base58.Decode(SanitizeBase58(nonceBase58))
	if err != nil || len(nonceBytes) != NonceSize {
		return fmt.Errorf("%w: nonce must be %d bytes", model.ErrDecryptionFailure, NonceSize)
	}
	var nonce [NonceSize]byte
	copy(nonce[:], nonceBytes)

	plaintext, ok := box.OpenAfterPrecomputation(nil, ciphertext, &nonce, sharedSecret)
	if !ok {
		return fmt.Errorf("%w: authentication tag mismatch", model.ErrDecryptionFailure)
	}
	defer clear(plaintext) // wipe decrypted bytes from memory

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: failed to unmarshal payload: %v", model.ErrDecryptionFailure, err)
	}
	return nil
}

// OpenBytes decrypts data produced by SealBytes
func OpenBytes(key, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.New("invalid passphrase")
	}
	return plaintext, nil
}
