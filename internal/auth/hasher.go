// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Wrapf(ErrCannotBeCreated, "password cannot be empty")

// PasswordHasher provides password hashing and verification.
// Implementations must never log or retain the plaintext.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, hash string) (bool, error)

	// NeedsUpgrade reports whether hash should be replaced by a fresh Hash of
	// the same password.
	NeedsUpgrade(hash string) bool
}

// Argon2Params are the argon2id cost parameters. They are encoded into every
// hash, so changing them only affects new hashes and upgrades.
type Argon2Params struct {
	Iterations  uint32
	MemoryKiB   uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns the OWASP baseline: 64 MiB, one pass, four lanes.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Iterations:  1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate rejects parameters argon2 cannot run with or that are too weak to
// protect a password.
func (p Argon2Params) Validate() error {
	switch {
	case p.Iterations < 1:
		return oops.Code("HASHER_CONFIG_INVALID").Errorf("argon2 iterations must be at least 1")
	case p.Parallelism < 1:
		return oops.Code("HASHER_CONFIG_INVALID").Errorf("argon2 parallelism must be at least 1")
	case p.MemoryKiB < 8*uint32(p.Parallelism):
		return oops.Code("HASHER_CONFIG_INVALID").
			With("memory_kib", p.MemoryKiB).
			Errorf("argon2 memory must be at least 8 KiB per lane")
	case p.SaltLength < 8:
		return oops.Code("HASHER_CONFIG_INVALID").Errorf("argon2 salt must be at least 8 bytes")
	case p.MemoryKiB > maxArgon2MemoryKiB:
		return oops.Code("HASHER_CONFIG_INVALID").
			With("memory_kib", p.MemoryKiB).
			Errorf("argon2 memory cannot exceed %d KiB", maxArgon2MemoryKiB)
	case p.Iterations > maxArgon2Iterations:
		return oops.Code("HASHER_CONFIG_INVALID").
			With("iterations", p.Iterations).
			Errorf("argon2 iterations cannot exceed %d", maxArgon2Iterations)
	case p.KeyLength < 16:
		return oops.Code("HASHER_CONFIG_INVALID").Errorf("argon2 key must be at least 16 bytes")
	}
	return nil
}

// Argon2idHasher implements PasswordHasher using argon2id. It also verifies
// bcrypt hashes carried over from older deployments and reports them as
// needing an upgrade.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a hasher that produces hashes with params.
func NewArgon2idHasher(params Argon2Params) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces an argon2id hash of the password in PHC string format:
// $argon2id$v=19$m=<memory>,t=<iterations>,p=<parallelism>$<salt>$<key>
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	return argon2Hash{version: argon2.Version, params: p, salt: salt, key: key}.String(), nil
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	if isBcryptHash(encodedHash) {
		return verifyBcrypt(password, encodedHash)
	}

	stored, err := parseArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}
	p := stored.params
	computed := argon2.IDKey([]byte(password), stored.salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	return subtle.ConstantTimeCompare(computed, stored.key) == 1, nil
}

// NeedsUpgrade is true for bcrypt hashes and for argon2id hashes produced
// with parameters other than the hasher's own.
func (h *Argon2idHasher) NeedsUpgrade(hash string) bool {
	if isBcryptHash(hash) {
		return true
	}
	stored, err := parseArgon2Hash(hash)
	if err != nil {
		return true
	}
	want := h.params
	got := stored.params
	return stored.version != argon2.Version ||
		got.Iterations != want.Iterations ||
		got.MemoryKiB != want.MemoryKiB ||
		got.Parallelism != want.Parallelism ||
		got.SaltLength != want.SaltLength ||
		got.KeyLength != want.KeyLength
}

// Upper bounds on the cost a stored hash can demand from Verify.
const (
	maxArgon2MemoryKiB  = 1 << 20
	maxArgon2Iterations = 64
)

type argon2Hash struct {
	version int
	params  Argon2Params
	salt    []byte
	key     []byte
}

func (a argon2Hash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		a.version,
		a.params.MemoryKiB,
		a.params.Iterations,
		a.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(a.salt),
		base64.RawStdEncoding.EncodeToString(a.key),
	)
}

func parseArgon2Hash(encoded string) (*argon2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var out argon2Hash
	if _, err := fmt.Sscanf(parts[2], "v=%d", &out.version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").With("field", "version").Wrap(err)
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &out.params.MemoryKiB, &out.params.Iterations, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").With("field", "params").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}
	out.params.Parallelism = uint8(threads)
	if out.params.MemoryKiB == 0 || out.params.MemoryKiB > maxArgon2MemoryKiB ||
		out.params.Iterations == 0 || out.params.Iterations > maxArgon2Iterations {
		return nil, oops.Code("AUTH_INVALID_HASH").
			With("memory_kib", out.params.MemoryKiB).
			With("iterations", out.params.Iterations).
			Errorf("argon2 cost out of range")
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").With("field", "salt").Wrap(err)
	}
	if out.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").With("field", "key").Wrap(err)
	}
	if len(out.key) == 0 || len(out.key) > 1<<10 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(out.key))
	}
	out.params.SaltLength = uint32(len(out.salt))
	out.params.KeyLength = uint32(len(out.key))
	return &out, nil
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

// verifyBcrypt relies on bcrypt's own constant-time comparison.
func verifyBcrypt(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").With("algorithm", "bcrypt").Wrap(err)
	}
}
