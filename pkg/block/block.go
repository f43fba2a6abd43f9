// Package block defines block types, canonical encoding, and structural
// validation.
package block

import "github.com/INT-devs/intcoin/pkg/tx"

// Block represents a block in the chain: a header plus an ordered
// sequence of transactions, the first of which must be the coinbase.
type Block struct {
	Header       *Header           `json:"header"`
	Transactions []*tx.Transaction `json:"transactions"`
}

// NewBlock creates a new block with the given header and transactions.
func NewBlock(header *Header, transactions []*tx.Transaction) *Block {
	return &Block{
		Header:       header,
		Transactions: transactions,
	}
}
