package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Parameters controls the cost factors for Argon2id password hashing.
type Argon2Parameters struct {
	// Time is the number of iterations.
	Time uint32
	// Memory is the amount of memory (in kibibytes) to use.
	Memory uint32
	// Threads is the degree of parallelism.
	Threads uint8
	// SaltLength is the random salt size in bytes.
	SaltLength uint32
	// KeyLength is the desired length of the derived key in bytes.
	KeyLength uint32
}

// DefaultArgon2Params returns the default Argon2id parameters used for password hashing.
func DefaultArgon2Params() Argon2Parameters {
	return Argon2Parameters{
		Time:       2,
		Memory:     64 * 1024, // 64 MiB
		Threads:    2,
		SaltLength: 16,
		KeyLength:  32,
	}
}

// Validate ensures the parameters are suitable for Argon2id hashing.
func (p Argon2Parameters) Validate() error {
	if p.Time == 0 {
		return fmt.Errorf("argon2: time cost must be greater than zero")
	}
	if p.Threads == 0 {
		return fmt.Errorf("argon2: parallelism must be greater than zero")
	}
	if p.Memory < 8*uint32(p.Threads) {
		return fmt.Errorf("argon2: memory cost must be at least 8 * threads")
	}
	if p.SaltLength < 16 {
		return fmt.Errorf("argon2: salt must be at least 16 bytes (got %d)", p.SaltLength)
	}
	if p.KeyLength < 16 {
		return fmt.Errorf("argon2: key length must be at least 16 bytes (got %d)", p.KeyLength)
	}
	return nil
}

// Argon2Hasher produces PHC formatted argon2id hashes:
// $argon2id$v=19$m=65536,t=2,p=2$<salt>$<hash>
type Argon2Hasher struct {
	params Argon2Parameters
}

// NewArgon2Hasher validates params and returns a hasher.
func NewArgon2Hasher(params Argon2Parameters) (*Argon2Hasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2Hasher{params: params}, nil
}

// Hash derives a salted argon2id hash of password.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		AlgorithmArgon2id,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches the encoded hash.
func (h *Argon2Hasher) Verify(encodedHash, password string) bool {
	ok, err := verifyArgon2id(encodedHash, password)
	return err == nil && ok
}

func verifyArgon2id(encodedHash, password string) (bool, error) {
	params, salt, key, err := parseArgon2id(encodedHash)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

var errMalformedArgon2 = errors.New("argon2: malformed hash")

func parseArgon2id(encoded string) (Argon2Parameters, []byte, []byte, error) {
	var params Argon2Parameters

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != AlgorithmArgon2id {
		return params, nil, nil, errMalformedArgon2
	}

	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return params, nil, nil, fmt.Errorf("argon2: unsupported version %q", parts[2])
	}

	for _, kv := range strings.Split(parts[3], ",") {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return params, nil, nil, errMalformedArgon2
		}
		value, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return params, nil, nil, errMalformedArgon2
		}
		switch name {
		case "m":
			params.Memory = uint32(value)
		case "t":
			params.Time = uint32(value)
		case "p":
			if value > 255 {
				return params, nil, nil, errMalformedArgon2
			}
			params.Threads = uint8(value)
		default:
			return params, nil, nil, errMalformedArgon2
		}
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, errMalformedArgon2
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, errMalformedArgon2
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))

	if params.Time == 0 || params.Threads == 0 || params.Memory == 0 {
		return params, nil, nil, errMalformedArgon2
	}

	return params, salt, key, nil
}
