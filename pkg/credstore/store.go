// Package credstore persists deployment credential profiles encrypted at
// rest. Records are sealed individually with ChaCha20-Poly1305 (256-bit
// key, fresh 96-bit nonce per record); the key lives in a sibling file
// readable only by the owning user.
package credstore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/quietops/criblscope/pkg/model"
)

// ErrNotFound is returned when no profile exists under the given name.
var ErrNotFound = errors.New("credential profile not found")

const (
	storeDirName  = "cribl-hc"
	storeFileName = "credentials.enc"
	keyFileName   = "credentials.key"
)

// AuthType selects how a profile authenticates.
type AuthType string

const (
	AuthBearer AuthType = "bearer"
	AuthOAuth  AuthType = "oauth"
)

// Profile is one named deployment credential record.
type Profile struct {
	Name              string        `json:"name"`
	URL               string        `json:"url"`
	AuthType          AuthType      `json:"auth_type"`
	BearerToken       string        `json:"bearer_token,omitempty"`
	OAuthClientID     string        `json:"oauth_client_id,omitempty"`
	OAuthClientSecret string        `json:"oauth_client_secret,omitempty"`
	ProductHint       model.Product `json:"product_hint,omitempty"`
}

// Validate checks the profile carries the fields its auth type needs.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile: name required")
	}
	if p.URL == "" {
		return fmt.Errorf("profile %q: url required", p.Name)
	}
	switch p.AuthType {
	case AuthBearer:
		if p.BearerToken == "" {
			return fmt.Errorf("profile %q: bearer token required", p.Name)
		}
	case AuthOAuth:
		if p.OAuthClientID == "" || p.OAuthClientSecret == "" {
			return fmt.Errorf("profile %q: oauth client id and secret required", p.Name)
		}
	default:
		return fmt.Errorf("profile %q: unknown auth type %q", p.Name, p.AuthType)
	}
	return nil
}

// Store is the on-disk encrypted profile store.
type Store struct {
	dir string
	key []byte
}

// Open loads (or initializes) the store under dir. An empty dir resolves
// to <user-config>/cribl-hc. A missing key file is created with a fresh
// random 256-bit key.
func Open(dir string) (*Store, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("credstore: resolve config dir: %w", err)
		}
		dir = filepath.Join(base, storeDirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("credstore: create %s: %w", dir, err)
	}

	s := &Store{dir: dir}
	keyPath := filepath.Join(dir, keyFileName)
	key, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("credstore: key file %s has wrong size", keyPath)
		}
		s.key = key
	case os.IsNotExist(err):
		key = make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("credstore: generate key: %w", err)
		}
		if err := os.WriteFile(keyPath, key, 0o600); err != nil {
			return nil, fmt.Errorf("credstore: write key: %w", err)
		}
		s.key = key
	default:
		return nil, fmt.Errorf("credstore: read key: %w", err)
	}

	return s, nil
}

// Put stores or replaces a profile.
func (s *Store) Put(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	records, err := s.load()
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("credstore: encode profile: %w", err)
	}
	sealed, err := s.seal(plaintext)
	if err != nil {
		return err
	}
	records[p.Name] = sealed
	return s.save(records)
}

// Get returns the profile stored under name, or ErrNotFound.
func (s *Store) Get(name string) (*Profile, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	sealed, ok := records[name]
	if !ok {
		return nil, ErrNotFound
	}
	plaintext, err := s.open(sealed)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, fmt.Errorf("credstore: decode profile %q: %w", name, err)
	}
	return &p, nil
}

// List returns the stored profile names, sorted.
func (s *Store) List() ([]string, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the profile under name. Deleting a missing profile
// returns ErrNotFound.
func (s *Store) Delete(name string) error {
	records, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := records[name]; !ok {
		return ErrNotFound
	}
	delete(records, name)
	return s.save(records)
}

// ExportKey returns a copy of the encryption key for operator backup.
func (s *Store) ExportKey() []byte {
	return append([]byte(nil), s.key...)
}

func (s *Store) seal(plaintext []byte) (string, error) {
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return "", fmt.Errorf("credstore: init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("credstore: nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Store) open(encoded string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("credstore: decode record: %w", err)
	}
	aead, err := chacha20poly1305.New(s.key)
	if err != nil {
		return nil, fmt.Errorf("credstore: init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("credstore: record too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("credstore: decrypt record: %w", err)
	}
	return plaintext, nil
}

func (s *Store) load() (map[string]string, error) {
	path := filepath.Join(s.dir, storeFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credstore: read store: %w", err)
	}
	var records map[string]string
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("credstore: parse store: %w", err)
	}
	return records, nil
}

func (s *Store) save(records map[string]string) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("credstore: encode store: %w", err)
	}
	path := filepath.Join(s.dir, storeFileName)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("credstore: write store: %w", err)
	}
	return nil
}
