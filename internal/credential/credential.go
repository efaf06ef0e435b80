// Package credential provides password hashing, verification, and redaction.
//
// A credential is stored as "algorithm$iterations$hexsalt$hexhash" for
// verifiable algorithms, or the bare sentinel "redacted" once the secret
// material has been stripped. Redaction is irreversible: a redacted
// credential never verifies and never carries hash or salt bytes again.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// AlgPBKDF2SHA256 is the default verifiable hashing algorithm.
const AlgPBKDF2SHA256 = "pbkdf2-sha256"

// AlgRedacted marks a credential whose secret material has been stripped.
const AlgRedacted = "redacted"

const (
	saltSize = 16
	keySize  = 32

	// DefaultIterations follows the OWASP recommendation for PBKDF2-SHA-256.
	DefaultIterations = 600000
)

// FormatError indicates a stored credential that could not be decoded.
// It surfaces at parse time; Verify is total over well-formed credentials.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string { return e.Message }

func errFormat(format string, args ...any) *FormatError {
	return &FormatError{Message: fmt.Sprintf(format, args...)}
}

// Credential is the verifiable (or redacted) representation of a password.
type Credential struct {
	Algorithm  string
	Iterations int
	Salt       []byte
	Hash       []byte
}

// Redacted reports whether the credential carries no secret material.
func (c Credential) Redacted() bool { return c.Algorithm == AlgRedacted }

// Redact strips the secret material. Idempotent.
func (c Credential) Redact() Credential {
	return Credential{Algorithm: AlgRedacted}
}

// Encode renders the credential in its storage form. Redacted credentials
// encode as the bare sentinel with no hash or salt bytes.
func (c Credential) Encode() string {
	if c.Redacted() {
		return AlgRedacted
	}
	return fmt.Sprintf("%s$%d$%s$%s",
		c.Algorithm, c.Iterations,
		hex.EncodeToString(c.Salt), hex.EncodeToString(c.Hash))
}

// Parse decodes the storage form produced by Encode.
func Parse(enc string) (Credential, error) {
	if enc == AlgRedacted {
		return Credential{Algorithm: AlgRedacted}, nil
	}
	parts := strings.Split(enc, "$")
	if len(parts) != 4 {
		return Credential{}, errFormat("malformed credential: expected 4 fields, got %d", len(parts))
	}
	if parts[0] != AlgPBKDF2SHA256 {
		return Credential{}, errFormat("unknown credential algorithm %q", parts[0])
	}
	iter, err := strconv.Atoi(parts[1])
	if err != nil || iter <= 0 {
		return Credential{}, errFormat("malformed iteration count %q", parts[1])
	}
	salt, err := hex.DecodeString(parts[2])
	if err != nil {
		return Credential{}, errFormat("malformed credential salt: %v", err)
	}
	hash, err := hex.DecodeString(parts[3])
	if err != nil {
		return Credential{}, errFormat("malformed credential hash: %v", err)
	}
	if len(salt) == 0 || len(hash) == 0 {
		return Credential{}, errFormat("credential is missing salt or hash material")
	}
	return Credential{Algorithm: parts[0], Iterations: iter, Salt: salt, Hash: hash}, nil
}

// Service hashes and verifies passwords with a configured iteration count.
type Service struct {
	iterations int
}

// NewService creates a credential service. iterations <= 0 selects the
// default.
func NewService(iterations int) *Service {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Service{iterations: iterations}
}

// Hash derives a new credential from plaintext with a fresh random salt.
func (s *Service) Hash(plaintext string) (Credential, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return Credential{}, fmt.Errorf("draw credential salt: %w", err)
	}
	hash := pbkdf2.Key([]byte(plaintext), salt, s.iterations, keySize, sha256.New)
	return Credential{
		Algorithm:  AlgPBKDF2SHA256,
		Iterations: s.iterations,
		Salt:       salt,
		Hash:       hash,
	}, nil
}

// Verify reports whether plaintext matches the credential. A redacted
// credential never verifies, regardless of input.
func (s *Service) Verify(c Credential, plaintext string) bool {
	if c.Redacted() || len(c.Hash) == 0 || len(c.Salt) == 0 {
		return false
	}
	derived := pbkdf2.Key([]byte(plaintext), c.Salt, c.Iterations, len(c.Hash), sha256.New)
	return subtle.ConstantTimeCompare(derived, c.Hash) == 1
}
