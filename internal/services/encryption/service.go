package encryption

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	"steemauth/internal/crypto"
	"steemauth/internal/domain"
)

const (
	// DefaultIterations is the PBKDF2 work factor.
	DefaultIterations = 100000

	pinSaltSuffix = "-pin"
)

// Option configures a Service.
type Option func(*Service)

// WithIterations overrides the PBKDF2 iteration count. Changing it makes
// existing ciphertexts undecryptable.
func WithIterations(n int) Option {
	return func(s *Service) { s.iterations = n }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log.With().Str("component", "encryption").Logger() }
}

// Service holds the current key in memory.
type Service struct {
	namespace  string
	iterations int
	log        zerolog.Logger

	mu      sync.RWMutex
	current *domain.Key
}

// New returns a Service whose salts are scoped to namespace (the app name).
func New(namespace string, opts ...Option) *Service {
	s := &Service{
		namespace:  namespace,
		iterations: DefaultIterations,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DeriveKey derives a key from secret and makes it current. The output is
// deterministic for identical inputs.
func (s *Service) DeriveKey(
	username domain.Username,
	secret string,
	purpose domain.KeyPurpose,
) (domain.Key, error) {
	salt := username.String() + s.namespace
	if purpose == domain.PurposePIN {
		salt += pinSaltSuffix
	}
	secretBytes := []byte(secret)
	derived := pbkdf2.Key(secretBytes, []byte(salt), s.iterations, chacha20poly1305.KeySize, sha256.New)
	crypto.Wipe(secretBytes)

	key := domain.Key{Username: username, Purpose: purpose}
	copy(key.Bytes[:], derived)
	crypto.Wipe(derived)

	s.mu.Lock()
	s.wipeLocked()
	k := key
	s.current = &k
	s.mu.Unlock()

	s.log.Debug().Str("username", username.String()).Bool("pin", purpose == domain.PurposePIN).Msg("encryption key derived")
	return key, nil
}

// Current returns a snapshot of the current key.
func (s *Service) Current() (domain.Key, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Key{}, false
	}
	return *s.current, true
}

// Encrypt seals plaintext with the current key.
func (s *Service) Encrypt(plaintext string) (string, error) {
	key, ok := s.Current()
	if !ok {
		return "", domain.ErrKeyNotAvailable
	}
	return s.EncryptWith(key, plaintext)
}

// Decrypt opens ciphertext with the current key.
func (s *Service) Decrypt(ciphertext string) (string, error) {
	key, ok := s.Current()
	if !ok {
		return "", domain.ErrKeyNotAvailable
	}
	return s.DecryptWith(key, ciphertext)
}

// EncryptWith seals plaintext with key, independent of the current key.
func (s *Service) EncryptWith(key domain.Key, plaintext string) (string, error) {
	aead, err := chacha20poly1305.New(key.Bytes[:])
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptWith opens ciphertext with key, independent of the current key.
func (s *Service) DecryptWith(key domain.Key, ciphertext string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", domain.ErrDecryptionFailed)
	}
	aead, err := chacha20poly1305.New(key.Bytes[:])
	if err != nil {
		return "", err
	}
	if len(blob) < aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", domain.ErrDecryptionFailed)
	}
	nonce, sealed := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: wrong key or corrupted data", domain.ErrDecryptionFailed)
	}
	defer crypto.Wipe(pt)
	return string(pt), nil
}

// ClearKey drops the current key.
func (s *Service) ClearKey() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.log.Debug().Str("username", s.current.Username.String()).Msg("encryption key cleared")
	}
	s.wipeLocked()
}

func (s *Service) wipeLocked() {
	if s.current == nil {
		return
	}
	crypto.Wipe(s.current.Bytes[:])
	s.current = nil
}

// Compile-time assertion that Service implements domain.EncryptionService.
var _ domain.EncryptionService = (*Service)(nil)
