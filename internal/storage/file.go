package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/AlexZinkM/walletlink/internal/crypto"
)

const storeFile = "store.json"

var errStoreClosed = errors.New("store is closed")

// fileData is the on-disk layout. Entries is used for plain stores,
// Salt/Nonce/CipherText for sealed ones (the sealed plaintext is the entries map).
type fileData struct {
	Sealed     bool              `json:"sealed"`
	Entries    map[string]string `json:"entries,omitempty"`
	Salt       string            `json:"salt,omitempty"`
	Nonce      string            `json:"nonce,omitempty"`
	CipherText string            `json:"cipherText,omitempty"`
}

// FileStore keeps all entries in one JSON file, rewritten on every change
type FileStore struct {
	mu       sync.RWMutex
	filePath string
	entries  map[string]string
	key      []byte // nil when not sealed
	salt     []byte
	closed   bool
}

// NewFileStore opens or creates the store file in dir.
// passphrase must be []byte for security (caller should zero it after use); nil disables sealing.
func NewFileStore(dir string, passphrase []byte, kdf crypto.KDFParams) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	fs := &FileStore{
		filePath: filepath.Join(dir, storeFile),
		entries:  make(map[string]string),
	}

	data, err := fs.readData()
	if err != nil {
		return nil, err
	}

	if data.Sealed && len(passphrase) == 0 {
		return nil, errors.New("store is sealed: passphrase required")
	}
	if !data.Sealed && len(data.Entries) > 0 && len(passphrase) > 0 {
		return nil, errors.New("store is not sealed: refusing to use passphrase on plain store")
	}

	if len(passphrase) > 0 {
		if data.Sealed {
			fs.salt, err = base64.StdEncoding.DecodeString(data.Salt)
			if err != nil {
				return nil, fmt.Errorf("failed to decode salt: %w", err)
			}
		} else {
			if fs.salt, err = crypto.NewSalt(); err != nil {
				return nil, err
			}
		}
		if fs.key, err = crypto.DeriveStoreKey(passphrase, fs.salt, kdf); err != nil {
			return nil, err
		}
	}

	if data.Sealed {
		if err := fs.unseal(data); err != nil {
			return nil, err
		}
	} else if data.Entries != nil {
		fs.entries = data.Entries
	}

	return fs, nil
}

// readData reads the store file. A missing or empty file is an empty store.
func (fs *FileStore) readData() (*fileData, error) {
	data := &fileData{}

	file, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if len(file) == 0 {
		return data, nil
	}

	if err := json.Unmarshal(file, data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal store file: %w", err)
	}
	return data, nil
}

func (fs *FileStore) unseal(data *fileData) error {
	nonce, err := base64.StdEncoding.DecodeString(data.Nonce)
	if err != nil {
		return fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(data.CipherText)
	if err != nil {
		return fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	plaintext, err := crypto.OpenBytes(fs.key, nonce, ciphertext)
	if err != nil {
		return err
	}
	defer clear(plaintext)

	entries := make(map[string]string)
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal store entries: %w", err)
	}
	fs.entries = entries
	return nil
}

// flush writes the current entries. Caller holds fs.mu.
func (fs *FileStore) flush() error {
	data := fileData{Entries: fs.entries}

	if fs.key != nil {
		plaintext, err := json.Marshal(fs.entries)
		if err != nil {
			return fmt.Errorf("failed to marshal store entries: %w", err)
		}
		defer clear(plaintext)

		nonce, ciphertext, err := crypto.SealBytes(fs.key, plaintext)
		if err != nil {
			return err
		}
		data = fileData{
			Sealed:     true,
			Salt:       base64.StdEncoding.EncodeToString(fs.salt),
			Nonce:      base64.StdEncoding.EncodeToString(nonce),
			CipherText: base64.StdEncoding.EncodeToString(ciphertext),
		}
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store file: %w", err)
	}

	// Write to a temp file and rename so a crash never leaves a half-written store
	tmp := fs.filePath + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, fs.filePath); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func (fs *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	v, ok := fs.entries[key]
	return v, ok, nil
}

func (fs *FileStore) Set(_ context.Context, key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return errStoreClosed
	}

	prev, existed := fs.entries[key]
	fs.entries[key] = value
	if err := fs.flush(); err != nil {
		if existed {
			fs.entries[key] = prev
		} else {
			delete(fs.entries, key)
		}
		return err
	}
	return nil
}

func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return errStoreClosed
	}

	prev, existed := fs.entries[key]
	if !existed {
		return nil
	}
	delete(fs.entries, key)
	if err := fs.flush(); err != nil {
		fs.entries[key] = prev
		return err
	}
	return nil
}

// Rekey rewrites the store under a new passphrase with a fresh salt.
// An empty passphrase writes the store unsealed.
func (fs *FileStore) Rekey(passphrase []byte, kdf crypto.KDFParams) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.closed {
		return errStoreClosed
	}

	var key, salt []byte
	if len(passphrase) > 0 {
		var err error
		if salt, err = crypto.NewSalt(); err != nil {
			return err
		}
		if key, err = crypto.DeriveStoreKey(passphrase, salt, kdf); err != nil {
			return err
		}
	}

	prevKey, prevSalt := fs.key, fs.salt
	fs.key, fs.salt = key, salt
	if err := fs.flush(); err != nil {
		clear(key)
		fs.key, fs.salt = prevKey, prevSalt
		return err
	}
	clear(prevKey)
	return nil
}

// Close wipes the sealing key from memory
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	clear(fs.key)
	fs.key = nil
	fs.closed = true
	return nil
}
