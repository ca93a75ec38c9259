package sessions

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/jrsteele09/go-school-admin/internal/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealedPrefix = "sealed.v1."
	saltLength   = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var _ Storage = (*SealedStorage)(nil)

// SealedStorage encrypts values before handing them to the wrapped Storage, so tokens are not
// kept in clear text on disk. The key is derived from a passphrase with Argon2id; values are
// sealed with XChaCha20-Poly1305 and bound to their storage key.
//
// Stored format: "sealed.v1." + base64url(salt | nonce | ciphertext).
type SealedStorage struct {
	inner      Storage
	passphrase []byte

	lock      sync.Mutex
	writeSalt []byte
	keys      map[string][]byte // salt -> derived key
}

func NewSealedStorage(inner Storage, passphrase string) (*SealedStorage, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("[SealedStorage New] passphrase is required")
	}
	return &SealedStorage{
		inner:      inner,
		passphrase: []byte(passphrase),
		keys:       make(map[string][]byte),
	}, nil
}

func (s *SealedStorage) Get(key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(key)
	if err != nil || !ok {
		return "", ok, err
	}

	plain, err := s.open(key, raw)
	if err != nil {
		return "", true, err
	}
	return plain, true, nil
}

func (s *SealedStorage) Set(key, value string) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(key, sealed)
}

func (s *SealedStorage) Remove(key string) error {
	return s.inner.Remove(key)
}

func (s *SealedStorage) seal(key, value string) (string, error) {
	salt, aeadKey, err := s.writeKey()
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(aeadKey)
	if err != nil {
		return "", fmt.Errorf("[SealedStorage seal] %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("[SealedStorage seal] nonce: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(salt)
	buf.Write(nonce)
	buf.Write(aead.Seal(nil, nonce, []byte(value), []byte(key)))

	return sealedPrefix + base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

func (s *SealedStorage) open(key, raw string) (string, error) {
	if !strings.HasPrefix(raw, sealedPrefix) {
		return "", fmt.Errorf("[SealedStorage open] value is not sealed: %w", errors.ErrSessionCorrupt)
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(raw, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("[SealedStorage open] decode: %w", errors.ErrSessionCorrupt)
	}
	if len(data) < saltLength+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return "", fmt.Errorf("[SealedStorage open] value too short: %w", errors.ErrSessionCorrupt)
	}

	salt := data[:saltLength]
	nonce := data[saltLength : saltLength+chacha20poly1305.NonceSizeX]
	ciphertext := data[saltLength+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(s.keyFor(salt))
	if err != nil {
		return "", fmt.Errorf("[SealedStorage open] %w", err)
	}
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", fmt.Errorf("[SealedStorage open] authentication failed: %w", errors.ErrSessionCorrupt)
	}
	return string(plain), nil
}

// writeKey returns the salt and key used for writes, deriving them once per instance.
func (s *SealedStorage) writeKey() ([]byte, []byte, error) {
	s.lock.Lock()
	if s.writeSalt == nil {
		salt := make([]byte, saltLength)
		if _, err := rand.Read(salt); err != nil {
			s.lock.Unlock()
			return nil, nil, fmt.Errorf("[SealedStorage] salt: %w", err)
		}
		s.writeSalt = salt
	}
	salt := s.writeSalt
	s.lock.Unlock()

	return salt, s.keyFor(salt), nil
}

func (s *SealedStorage) keyFor(salt []byte) []byte {
	s.lock.Lock()
	defer s.lock.Unlock()

	if k, ok := s.keys[string(salt)]; ok {
		return k
	}
	k := argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
	s.keys[string(salt)] = k
	return k
}
