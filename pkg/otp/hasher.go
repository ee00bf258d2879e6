package otp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher derives the stored value of a code. It must be deterministic so the
// store can match a submission by equality.
type Hasher interface {
	Hash(userID, code string) string
}

// HMACHasher keys SHA-256 with a server-side pepper and binds the hash to the
// user, so a leaked table cannot be reversed by hashing all 10^6 codes once.
type HMACHasher struct {
	pepper []byte
}

func NewHMACHasher(pepper string) *HMACHasher {
	return &HMACHasher{pepper: []byte(pepper)}
}

func (h *HMACHasher) Hash(userID, code string) string {
	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte(userID))
	mac.Write([]byte{':'})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}
