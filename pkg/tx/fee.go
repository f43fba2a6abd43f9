package tx

// EstimateTxFee returns the minimum fee for a transaction with the given
// number of inputs and outputs at the given fee rate (base units per
// byte), using the canonical Encode() layout: version(4) + input-count
// varint + per-input(36 + unlock-script varint + sequence 4) +
// output-count varint + per-output(8 + script varint) + locktime(4).
// Every varint is counted as one byte.
func EstimateTxFee(numInputs, numOutputs int, feeRate uint64, avgUnlockScriptBytes, avgLockScriptBytes int) uint64 {
	const overhead = 4 + 1 + 1 + 4 // version + input count + output count + locktime
	const perInput = 32 + 4 + 4
	const perOutput = 8

	size := overhead +
		(perInput+avgUnlockScriptBytes+1)*numInputs +
		(perOutput+avgLockScriptBytes+1)*numOutputs
	return uint64(size) * feeRate
}

// RequiredFee returns the exact minimum fee for a fully built transaction
// at the given fee rate (base units per byte of its canonical encoding).
func RequiredFee(transaction *Transaction, feeRate uint64) uint64 {
	return uint64(len(transaction.Encode())) * feeRate
}

// FeeRate computes fee / size for a transaction, the ordering key the
// mempool uses for block-template selection.
func FeeRate(fee uint64, transaction *Transaction) uint64 {
	size := len(transaction.Encode())
	if size == 0 {
		return 0
	}
	return fee / uint64(size)
}
