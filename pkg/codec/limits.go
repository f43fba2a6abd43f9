// Package codec implements the canonical binary wire encoding shared by
// transactions, headers, and blocks: VarInt length prefixes plus hard
// size caps, so a malformed or oversized wire blob is rejected before a
// single byte of it is trusted.
package codec

// Hard size caps enforced during decode. These mirror the limits a
// transaction or block must already satisfy to pass structural
// validation, but the codec enforces them itself so a caller can never
// accidentally decode (and then hold in memory) something the protocol
// would never accept.
const (
	MaxBlockBytes  = 4 * 1024 * 1024 // 4 MiB
	MaxTxBytes     = 1024 * 1024     // 1 MiB
	MaxScriptBytes = 10 * 1024       // 10 KiB
	MaxTxEntries   = 65536           // inputs or outputs per transaction
)
