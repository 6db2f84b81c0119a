// Package keystore keeps provider API keys encrypted at rest with a key
// derived from the machine identity, so the file is useless if copied to
// another machine.
//
// A Store is created explicitly with Open and lives as long as the process
// holds it; Reload re-reads the file after another process changed it.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const (
	FileName = "api_keys.enc"
	nonceLen = 12
	hkdfSalt = "omni-text.keys.v1"
	hkdfInfo = "encryption-key"
)

var ErrCorrupt = errors.New("keys file cannot be decrypted")

type Store struct {
	mu   sync.Mutex
	path string
	aead cipher.AEAD
	keys map[string]string
}

// Open derives the encryption key from this machine's identifier and loads
// dir/api_keys.enc if present.
func Open(dir string) (*Store, error) {
	id, err := machineID()
	if err != nil {
		return nil, fmt.Errorf("machine id: %w", err)
	}
	return OpenWithSecret(dir, []byte(id))
}

// OpenWithSecret is Open with an explicit key-derivation secret.
// A file that cannot be decrypted is logged and treated as empty.
func OpenWithSecret(dir string, secret []byte) (*Store, error) {
	aead, err := newAEAD(secret)
	if err != nil {
		return nil, err
	}
	s := &Store{path: filepath.Join(dir, FileName), aead: aead, keys: map[string]string{}}
	if err := s.Reload(); err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return nil, err
		}
		log.Printf("keystore: %v; starting with no keys", err)
	}
	return s, nil
}

func newAEAD(secret []byte) (cipher.AEAD, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty key-derivation secret")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, []byte(hkdfSalt), []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("key derivation failed: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Reload replaces the in-memory keys with the file contents. A missing
// file means no keys.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.keys = map[string]string{}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read keys file: %w", err)
	}
	keys, err := s.decrypt(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(provider string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[provider]
	return key, ok
}

func (s *Store) Set(provider, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneMap(s.keys)
	next[provider] = key
	if err := s.save(next); err != nil {
		return err
	}
	s.keys = next
	return nil
}

func (s *Store) Delete(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := cloneMap(s.keys)
	delete(next, provider)
	if err := s.save(next); err != nil {
		return err
	}
	s.keys = next
	return nil
}

// Providers lists the providers that have a key, sorted.
func (s *Store) Providers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.keys))
	for p := range s.keys {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *Store) decrypt(data []byte) (map[string]string, error) {
	if len(data) < nonceLen {
		return nil, fmt.Errorf("%w: file too short", ErrCorrupt)
	}
	plaintext, err := s.aead.Open(nil, data[:nonceLen], data[nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	keys := map[string]string{}
	if err := json.Unmarshal(plaintext, &keys); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrCorrupt, err)
	}
	return keys, nil
}

// save writes nonce||ciphertext through a temp file and rename.
func (s *Store) save(keys map[string]string) error {
	plaintext, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("serialize keys: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	data := s.aead.Seal(nonce, nonce, plaintext, nil)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create keys dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write keys file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename keys file: %w", err)
	}
	return nil
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
