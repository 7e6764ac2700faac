package otodo

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// Credential derivation parameters. The verifier is the only place a
// password-derived secret is ever stored on the device.
const (
	credSaltBytes  = 16
	credKeyBytes   = 32
	credIterations = 120000
	credHashName   = "SHA-256"
)

// Session modes.
const (
	SessionOnline  = "online"
	SessionOffline = "offline"
)

var (
	// ErrNoOfflineCredential means no credential record has been stored yet,
	// so offline login is unavailable on this device.
	ErrNoOfflineCredential = errors.New("no offline credential stored")

	// ErrCredentialMismatch means the submitted credentials did not verify.
	// Callers show the same "invalid credentials" message for both errors;
	// the distinction exists only internally.
	ErrCredentialMismatch = errors.New("credential mismatch")
)

// Credential is the locally stored, irreversibly derived proof of a password.
type Credential struct {
	Salt       string `json:"salt"` // base64
	Iterations int    `json:"iterations"`
	Hash       string `json:"hash"`
	Verifier   string `json:"verifier"` // base64
}

// OfflineAuth is the persisted offline credential record, written after a
// successful online login.
type OfflineAuth struct {
	User       User        `json:"user"`
	IssuedAt   time.Time   `json:"issued_at"`
	Credential *Credential `json:"credential"`
}

// Session is the current login session record.
type Session struct {
	User     User      `json:"user"`
	IssuedAt time.Time `json:"issued_at"`
	Mode     string    `json:"mode"` // SessionOnline or SessionOffline
}

// CredentialVerifier derives and checks the locally stored password verifier
// used for offline login, and manages the session record.
type CredentialVerifier struct {
	store  Store
	clock  Clock
	logger Logger
}

// NewCredentialVerifier creates a CredentialVerifier backed by the store.
func NewCredentialVerifier(store Store, clock Clock, logger Logger) *CredentialVerifier {
	return &CredentialVerifier{store: store, clock: clock, logger: logger}
}

// DeriveCredential generates a fresh salt and derives a verifier from the
// password with PBKDF2-SHA256. The derivation is deliberately slow.
func DeriveCredential(password string) (*Credential, error) {
	salt := make([]byte, credSaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	verifier := pbkdf2.Key([]byte(password), salt, credIterations, credKeyBytes, sha256.New)
	return &Credential{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Iterations: credIterations,
		Hash:       credHashName,
		Verifier:   base64.StdEncoding.EncodeToString(verifier),
	}, nil
}

// StoreOfflineAuth persists the offline credential record after a successful
// online login and writes an online-mode session. An empty password stores
// the identity without a credential; offline login stays unavailable.
func (v *CredentialVerifier) StoreOfflineAuth(user User, issuedAt time.Time, password string) error {
	record := OfflineAuth{
		User:     User{ID: user.ID, Email: strings.ToLower(user.Email)},
		IssuedAt: issuedAt,
	}
	if password != "" {
		cred, err := DeriveCredential(password)
		if err != nil {
			return err
		}
		record.Credential = cred
	}

	if err := v.setMetaJSON(MetaKeyOfflineAuth, record); err != nil {
		return fmt.Errorf("storing offline credential: %w", err)
	}
	if err := v.writeSession(record.User, issuedAt, SessionOnline); err != nil {
		return err
	}
	v.logger.Info("offline credential stored", "email", record.User.Email)
	return nil
}

// VerifyOffline checks an offline login attempt against the stored record.
// On success it writes an offline-mode session and returns it.
func (v *CredentialVerifier) VerifyOffline(email, password string) (*Session, error) {
	raw, ok, err := v.store.MetaGet(MetaKeyOfflineAuth)
	if err != nil {
		return nil, fmt.Errorf("reading offline credential: %w", err)
	}
	if !ok || raw == nil {
		return nil, ErrNoOfflineCredential
	}
	var stored OfflineAuth
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decoding offline credential: %w", err)
	}
	if stored.Credential == nil {
		return nil, ErrNoOfflineCredential
	}
	if strings.ToLower(email) != stored.User.Email {
		return nil, ErrCredentialMismatch
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Credential.Salt)
	if err != nil {
		return nil, fmt.Errorf("decoding salt: %w", err)
	}
	want, err := base64.StdEncoding.DecodeString(stored.Credential.Verifier)
	if err != nil {
		return nil, fmt.Errorf("decoding verifier: %w", err)
	}
	got := pbkdf2.Key([]byte(password), salt, stored.Credential.Iterations, len(want), sha256.New)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return nil, ErrCredentialMismatch
	}

	issuedAt := v.clock.Now()
	if err := v.writeSession(stored.User, issuedAt, SessionOffline); err != nil {
		return nil, err
	}
	v.logger.Info("offline login verified", "email", stored.User.Email)
	return &Session{User: stored.User, IssuedAt: issuedAt, Mode: SessionOffline}, nil
}

// CurrentSession returns the active session record, or nil if none.
func (v *CredentialVerifier) CurrentSession() (*Session, error) {
	raw, ok, err := v.store.MetaGet(MetaKeyOfflineSession)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if !ok || raw == nil {
		return nil, nil
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &s, nil
}

// Logout clears the session record. The stored credential is kept so future
// offline logins keep working.
func (v *CredentialVerifier) Logout() error {
	if err := v.store.MetaSet(MetaKeyOfflineSession, nil); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

func (v *CredentialVerifier) writeSession(user User, issuedAt time.Time, mode string) error {
	s := Session{User: user, IssuedAt: issuedAt, Mode: mode}
	if err := v.setMetaJSON(MetaKeyOfflineSession, s); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

func (v *CredentialVerifier) setMetaJSON(key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return v.store.MetaSet(key, encoded)
}
