package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash represents a cryptographic hash
type Hash string

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex digits, enough to tell configurations apart in logs.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// ConfigHash fingerprints the configuration files a run was started with.
type ConfigHash Hash

// NewConfigHash hashes the concatenated configuration documents.
func NewConfigHash(docs ...[]byte) ConfigHash {
	h := sha256.New()
	for _, d := range docs {
		h.Write(d)
		h.Write([]byte{0})
	}
	return ConfigHash(hex.EncodeToString(h.Sum(nil)))
}

func (h ConfigHash) String() string { return Hash(h).String() }
func (h ConfigHash) Short() string  { return Hash(h).Short() }
