package types

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ScriptHashType selects which cell a script's code is loaded from and
// which VM version executes it (spec.md §3 Script).
type ScriptHashType uint8

const (
	// HashTypeData matches the code_hash against the data hash of a cell's
	// cell_data and runs it on VM0.
	HashTypeData ScriptHashType = iota
	// HashTypeType matches the code_hash against the type script hash of a
	// live cell and runs its current data on VM0.
	HashTypeType
	// HashTypeData1 is HashTypeData, but runs on VM1.
	HashTypeData1
	// HashTypeData2 is HashTypeData, but runs on VM2.
	HashTypeData2
)

// String returns a human-readable name for the hash type.
func (t ScriptHashType) String() string {
	switch t {
	case HashTypeData:
		return "Data"
	case HashTypeType:
		return "Type"
	case HashTypeData1:
		return "Data1"
	case HashTypeData2:
		return "Data2"
	default:
		return "Unknown"
	}
}

// VMVersion returns the VM version a given hash type selects, per spec.md
// §3 ("hash_type selects ... which VM version executes it").
func (t ScriptHashType) VMVersion() int {
	switch t {
	case HashTypeData1:
		return 1
	case HashTypeData2:
		return 2
	default:
		return 0
	}
}

// Valid reports whether t is one of the four defined hash types.
func (t ScriptHashType) Valid() bool {
	return t <= HashTypeData2
}

// Script is a code+args bundle that determines spend authorization (as a
// lock) or type constraints (as a type script).
type Script struct {
	CodeHash Hash256        `json:"code_hash"`
	HashType ScriptHashType `json:"hash_type"`
	Args     []byte         `json:"args"`
}

// IsEmpty reports whether the script is the zero value (no type script set).
func (s Script) IsEmpty() bool {
	return s.CodeHash.IsZero() && s.HashType == HashTypeData && len(s.Args) == 0
}

// SerializedSize returns the byte size of the script as it would be
// serialized, used by OccupiedCapacity.
func (s Script) SerializedSize() int {
	return HashSize + 1 + 4 + len(s.Args)
}

// serializeInto appends the canonical encoding of s to buf and returns the
// extended slice: code_hash(32) | hash_type(1) | args_len(4) | args.
func (s Script) serializeInto(buf []byte) []byte {
	buf = append(buf, s.CodeHash[:]...)
	buf = append(buf, byte(s.HashType))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s.Args)))
	buf = append(buf, s.Args...)
	return buf
}

// Serialize returns the canonical byte encoding of the script.
func (s Script) Serialize() []byte {
	return s.serializeInto(make([]byte, 0, s.SerializedSize()))
}

// Hash returns the script_hash: blake2b(serialize(script)) (spec.md §3
// Script, "script_hash = blake2b(serialize(script))").
func (s Script) Hash() Hash256 {
	return sumHash256(s.Serialize())
}

// scriptJSON hex-encodes byte fields for JSON transport.
type scriptJSON struct {
	CodeHash Hash256        `json:"code_hash"`
	HashType ScriptHashType `json:"hash_type"`
	Args     string         `json:"args"`
}

// MarshalJSON encodes the script with hex-encoded args.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(scriptJSON{
		CodeHash: s.CodeHash,
		HashType: s.HashType,
		Args:     hex.EncodeToString(s.Args),
	})
}

// UnmarshalJSON decodes a script with hex-encoded args.
func (s *Script) UnmarshalJSON(data []byte) error {
	var j scriptJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	s.CodeHash = j.CodeHash
	s.HashType = j.HashType
	if j.Args != "" {
		b, err := hex.DecodeString(j.Args)
		if err != nil {
			return fmt.Errorf("invalid script args hex: %w", err)
		}
		s.Args = b
	}
	return nil
}
