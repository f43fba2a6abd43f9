package types

import (
	"encoding/hex"
	"encoding/json"
)

// Script is a raw opcode program interpreted by pkg/script's stack
// machine. Unlike a tagged locking-script type, a Script carries no type
// discriminant of its own: P2PKH, multisig, or any other spending
// condition is just a particular sequence of opcodes.
type Script []byte

// MarshalJSON encodes the script as a hex string.
func (s Script) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(s))
}

// UnmarshalJSON decodes a hex string into a script.
func (s *Script) UnmarshalJSON(data []byte) error {
	var hexStr string
	if err := json.Unmarshal(data, &hexStr); err != nil {
		return err
	}
	if hexStr == "" {
		*s = nil
		return nil
	}
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return err
	}
	*s = b
	return nil
}

// Bytes returns the raw script bytes.
func (s Script) Bytes() []byte {
	return []byte(s)
}

// Len returns the script length in bytes.
func (s Script) Len() int {
	return len(s)
}
