package script

import "github.com/INT-devs/intcoin/pkg/codec"

// CountSigOps scans a program and counts OP_CHECK_SIG_PQ occurrences,
// without executing it. Used by block validation to bound the total
// signature-verification cost of a block independently of whether any
// given script ultimately succeeds.
func CountSigOps(program []byte) (int, error) {
	r := codec.NewReader(program)
	count := 0
	for !r.AtEnd() {
		opByte, err := r.U8()
		if err != nil {
			return 0, newError(InvalidOpcode, "truncated program")
		}
		op := Op(opByte)

		if op == OP_PUSHDATA {
			if _, err := r.VarBytes(MaxElementSize); err != nil {
				return 0, newError(InvalidOpcode, "malformed push: "+err.Error())
			}
			continue
		}
		if isSmallInt(op) {
			continue
		}
		if op == OP_CHECK_SIG_PQ {
			count++
		}
	}
	return count, nil
}
