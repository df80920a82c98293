// One-off: re-seal the file store under a new passphrase with a fresh salt.
// -plain seals a store that is currently unencrypted, -unseal writes it back as plain JSON.
// Usage: go run ./cmd/rekey_store [-plain|-unseal]
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/AlexZinkM/walletlink/internal/config"
	"github.com/AlexZinkM/walletlink/internal/crypto"
	"github.com/AlexZinkM/walletlink/internal/storage"
)

func main() {
	plain := flag.Bool("plain", false, "the store is currently unencrypted")
	unseal := flag.Bool("unseal", false, "write the store without encryption")
	flag.Parse()

	if *plain && *unseal {
		fmt.Fprintln(os.Stderr, "-plain and -unseal are mutually exclusive")
		os.Exit(2)
	}
	if err := run(*plain, *unseal); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(plain, unseal bool) error {
	if err := config.Init(); err != nil {
		return err
	}
	cfg := config.Get()
	if cfg.StoreBackend != "file" {
		return fmt.Errorf("STORE_BACKEND is %q: only the file backend is sealed", cfg.StoreBackend)
	}

	var current []byte
	if !plain {
		var err error
		if current, err = config.PromptSecret("Current passphrase: "); err != nil {
			return err
		}
		defer clear(current)
	}

	store, err := storage.NewFileStore(cfg.StorePath, current, crypto.DefaultKDFParams)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	var next []byte
	if !unseal {
		if next, err = config.PromptSecret("New passphrase: "); err != nil {
			return err
		}
		defer clear(next)

		confirm, err := config.PromptSecret("Repeat new passphrase: ")
		if err != nil {
			return err
		}
		defer clear(confirm)
		if !bytes.Equal(next, confirm) {
			return fmt.Errorf("passphrases do not match")
		}
	}

	if err := store.Rekey(next, crypto.DefaultKDFParams); err != nil {
		return fmt.Errorf("failed to rekey store: %w", err)
	}
	fmt.Fprintln(os.Stderr, "store rewritten")
	return nil
}
