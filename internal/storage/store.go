// Package storage provides the scoped key-value store shared by keypairs, sessions and auth state.
// Values are strings; booleans are stored as "true"/"false".
package storage

import (
	"context"
	"fmt"

	"github.com/AlexZinkM/walletlink/internal/crypto"

	log "github.com/sirupsen/logrus"
)

// Store is a process-wide key-value store. Delete of an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend
type Options struct {
	Backend    string // memory, file, badger, sqlite
	Path       string // directory for file/badger/sqlite
	Passphrase []byte // file backend only; nil disables sealing
	KDF        crypto.KDFParams
	Logger     *log.Logger
}

// Open returns the backend named in opts
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "file", "":
		kdf := opts.KDF
		if kdf.N == 0 {
			kdf = crypto.DefaultKDFParams
		}
		return NewFileStore(opts.Path, opts.Passphrase, kdf)
	case "badger":
		if opts.Logger == nil {
			return NewBadgerStore(opts.Path, nil)
		}
		return NewBadgerStore(opts.Path, opts.Logger)
	case "sqlite":
		return NewSQLiteStore(opts.Path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
