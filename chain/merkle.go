package chain

import "crypto/sha256"

// MerkleRoot computes a binary Merkle root over the given leaf hashes,
// duplicating the final leaf when a level has an odd count (the common
// Bitcoin-style construction). spec.md does not fix an exact algorithm
// for "tx_merkle_root covers all included transactions in encoded
// order" beyond that requirement; this is the concrete choice, recorded
// in DESIGN.md. An empty transaction set hashes to the zero hash.
func MerkleRoot(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	level := make([][32]byte, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([][32]byte, len(level)/2)
		for i := range next {
			var buf [64]byte
			copy(buf[:32], level[2*i][:])
			copy(buf[32:], level[2*i+1][:])
			next[i] = sha256.Sum256(buf[:])
		}
		level = next
	}
	return level[0]
}

// TxMerkleRoot hashes each transaction via its canonical EncodeWithSigs
// form, in the given order, and folds them into a Merkle root.
func TxMerkleRoot(txs []TxVariant) [32]byte {
	leaves := make([][32]byte, len(txs))
	for i, tx := range txs {
		leaves[i] = Hash(tx)
	}
	return MerkleRoot(leaves)
}
