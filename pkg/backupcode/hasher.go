package backupcode

import (
	"encoding/base64"
	"strings"

	"golang.org/x/crypto/argon2"
)

const defaultSalt = "simple-stepup/backup-code"

// Hasher turns a backup code into the value stored in the user's hash set
type Hasher interface {
	Hash(code string) string
}

// Argon2Hasher hashes codes with Argon2id. The salt is a server-side pepper
// shared by all codes so that a candidate can be matched by equality in the
// store. The cost is lower than for passwords: codes carry 40 bits of entropy
// and every redeem hashes exactly once.
type Argon2Hasher struct {
	salt        []byte
	memory      uint32
	iterations  uint32
	parallelism uint8
	keyLength   uint32
}

// NewArgon2Hasher creates a hasher peppered with the given secret
func NewArgon2Hasher(pepper string) *Argon2Hasher {
	salt := defaultSalt
	if pepper != "" {
		salt = pepper
	}
	return &Argon2Hasher{
		salt:        []byte(salt),
		memory:      16 * 1024, // 16MB
		iterations:  1,
		parallelism: 2,
		keyLength:   32,
	}
}

func (h *Argon2Hasher) Hash(code string) string {
	key := argon2.IDKey([]byte(Normalize(code)), h.salt, h.iterations, h.memory, h.parallelism, h.keyLength)
	return base64.RawStdEncoding.EncodeToString(key)
}

// Normalize uppercases a code and strips separators so "abcd-efgh" and "ABCDEFGH" match
func Normalize(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
