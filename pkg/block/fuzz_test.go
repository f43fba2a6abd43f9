package block

import (
	"encoding/json"
	"testing"

	"github.com/INT-devs/intcoin/pkg/types"
)

// FuzzBlockUnmarshal tests that arbitrary JSON input does not panic
// when unmarshaled into a Block struct.
func FuzzBlockUnmarshal(f *testing.F) {
	// Seed with a minimal valid block JSON.
	f.Add([]byte(`{"header":{"version":1,"prev_hash":"0000000000000000000000000000000000000000000000000000000000000000","merkle_root":"0000000000000000000000000000000000000000000000000000000000000000","time":1000,"target":504365055,"nonce":0},"transactions":[]}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`null`))
	f.Add([]byte(`{"header":null}`))
	f.Add([]byte(`{"header":{"version":99999},"transactions":[{"inputs":[],"outputs":[]}]}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var blk Block
		if err := json.Unmarshal(data, &blk); err != nil {
			return // Invalid JSON is expected.
		}
		// If unmarshal succeeded, Validate and Hash must not panic.
		blk.Validate()
		blk.Hash(types.Hash{})
	})
}

// FuzzBlockHeaderUnmarshal tests that arbitrary JSON input does not panic
// when unmarshaled into a Header struct.
func FuzzBlockHeaderUnmarshal(f *testing.F) {
	f.Add([]byte(`{"version":1,"time":1000,"target":504365055,"nonce":0}`))
	f.Add([]byte(`{}`))
	f.Add([]byte(`{"target":4294967295}`))

	f.Fuzz(func(t *testing.T, data []byte) {
		var h Header
		if err := json.Unmarshal(data, &h); err != nil {
			return
		}
		h.Hash(types.Hash{})
		h.Encode()
	})
}

// FuzzHeaderDecode tests that DecodeHeader never panics on arbitrary bytes.
func FuzzHeaderDecode(f *testing.F) {
	h := &Header{Version: 1, Time: 1000, Target: MaxTargetCompact}
	f.Add(h.Encode())
	f.Add([]byte{})
	f.Add([]byte{0x01, 0x02, 0x03})

	f.Fuzz(func(t *testing.T, data []byte) {
		decoded, err := DecodeHeader(data)
		if err != nil {
			return
		}
		decoded.Hash(types.Hash{})
	})
}
