// Package types defines the core primitive types of the cell-model ledger:
// hashes, capacities, scripts, outpoints, cells, transactions, headers,
// blocks and epochs.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length in bytes of a content-address hash.
const HashSize = 32

// Hash256 is a 32-byte content address, compared lexicographically.
type Hash256 [HashSize]byte

// IsZero returns true if the hash is all zeros.
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

// Less reports whether h sorts strictly before other under lexicographic
// byte comparison. Used for deterministic script-group ordering.
func (h Hash256) Less(other Hash256) bool {
	for i := 0; i < HashSize; i++ {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// String returns the hex-encoded hash.
func (h Hash256) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of the hash as a byte slice.
func (h Hash256) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash256) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string into a hash.
func (h *Hash256) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash256{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(decoded) != HashSize {
		return fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// HexToHash converts a hex string to a Hash256.
func HexToHash(s string) (Hash256, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash256{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash256{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash256
	copy(h[:], b)
	return h, nil
}

// HashFromBytes copies b (which must be exactly HashSize long) into a Hash256.
func HashFromBytes(b []byte) (Hash256, error) {
	if len(b) != HashSize {
		return Hash256{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash256
	copy(h[:], b)
	return h, nil
}
