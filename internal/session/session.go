// Package session persists the wallet session and mirrors it into the app's auth state.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/AlexZinkM/walletlink/internal/common"
	"github.com/AlexZinkM/walletlink/internal/model"

	log "github.com/sirupsen/logrus"
)

const sessionKey = "wallet_session"

// Auth-state keys read by the rest of the app
const (
	AuthKeyProvider        = "provider"
	AuthKeyAddress         = "address"
	AuthKeyPublicKey       = "publicKey"
	AuthKeyIsLoggedIn      = "isLoggedIn"
	AuthKeyIsLoggingIn     = "isLoggingIn"
	AuthKeyUsername        = "username"
	AuthKeyProfilePicURL   = "profilePicUrl"
	AuthKeyWalletAuthToken = "walletAuthToken"
)

// Keys of the other login methods. A wallet login signs them out.
var exclusiveAuthKeys = []string{
	"phoneNumber",
	"phoneVerificationId",
	"phoneAuthToken",
	"googleIdToken",
	"googleAccessToken",
	"googleUser",
}

// KeyValue is the store interface the session store needs
type KeyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store holds at most one wallet session
type Store struct {
	kv   KeyValue
	auth KeyValue
}

// New returns a session store writing sessions to kv and the auth mirror to auth.
// Both may be the same store.
func New(kv, auth KeyValue) *Store {
	return &Store{kv: kv, auth: auth}
}

// Save persists the session, replacing any existing one
func (s *Store) Save(ctx context.Context, session model.WalletSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKey, string(raw)); err != nil {
		return fmt.Errorf("%w: failed to save session: %v", model.ErrStorageFailure, err)
	}
	return nil
}

// SaveWithAuth saves the session and mirrors it into the auth state.
// Returns false instead of an error so callers can show a recoverable message.
func (s *Store) SaveWithAuth(ctx context.Context, session model.WalletSession) bool {
	if err := s.Save(ctx, session); err != nil {
		log.WithError(err).WithField("wallet", session.WalletType).Error("failed to save wallet session")
		return false
	}

	values := []struct{ key, value string }{
		{AuthKeyProvider, string(session.WalletType)},
		{AuthKeyAddress, session.PublicKey},
		{AuthKeyPublicKey, session.PublicKey},
		{AuthKeyIsLoggedIn, strconv.FormatBool(true)},
		{AuthKeyIsLoggingIn, strconv.FormatBool(false)},
		{AuthKeyUsername, Username(session)},
		{AuthKeyProfilePicURL, ""},
		{AuthKeyWalletAuthToken, session.SessionToken},
	}
	for _, v := range values {
		if err := s.auth.Set(ctx, v.key, v.value); err != nil {
			log.WithError(err).WithField("key", v.key).Error("failed to mirror wallet session into auth state")
			return false
		}
	}

	for _, key := range exclusiveAuthKeys {
		if err := s.auth.Delete(ctx, key); err != nil {
			log.WithError(err).WithField("key", key).Error("failed to clear previous login")
			return false
		}
	}
	return true
}

// Get returns the stored session, or nil if there is none or it cannot be read
func (s *Store) Get(ctx context.Context) (*model.WalletSession, error) {
	raw, ok, err := s.kv.Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var session model.WalletSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		log.WithError(err).Warn("stored wallet session is malformed, ignoring")
		return nil, nil
	}
	if session.PublicKey == "" {
		return nil, nil
	}
	return &session, nil
}

// Clear removes the session
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, sessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// ClearWithAuth removes the session and signs the wallet out of the auth state
func (s *Store) ClearWithAuth(ctx context.Context) error {
	if err := s.Clear(ctx); err != nil {
		return err
	}
	for _, key := range []string{
		AuthKeyProvider, AuthKeyAddress, AuthKeyPublicKey,
		AuthKeyUsername, AuthKeyProfilePicURL, AuthKeyWalletAuthToken,
	} {
		if err := s.auth.Delete(ctx, key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	if err := s.auth.Set(ctx, AuthKeyIsLoggedIn, strconv.FormatBool(false)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", AuthKeyIsLoggedIn, err)
	}
	if err := s.auth.Set(ctx, AuthKeyIsLoggingIn, strconv.FormatBool(false)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", AuthKeyIsLoggingIn, err)
	}
	return nil
}

// IsAuthenticated reports whether a session is stored
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	session, err := s.Get(ctx)
	return err == nil && session != nil
}

// Username derives the display name shown for a wallet login
func Username(session model.WalletSession) string {
	return session.WalletType.DisplayName() + " " + common.ShortAddress(session.PublicKey, 4)
}
