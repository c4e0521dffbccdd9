package chain

import (
	"crypto/sha256"
	"fmt"

	"github.com/klaytn/graelnode/pkg/crypto"
	"github.com/klaytn/graelnode/pkg/txscript"
)

// Header is the fixed header of a V0 block, spec.md §3.
type Header struct {
	Height       uint64
	Timestamp    uint64
	PreviousHash [32]byte
	TxMerkleRoot [32]byte
}

func (h *Header) encode(b *Buffer) {
	b.PushU64(h.Height)
	b.PushU64(h.Timestamp)
	b.PushBytesRaw(h.PreviousHash[:])
	b.PushBytesRaw(h.TxMerkleRoot[:])
}

func decodeHeader(c *Cursor) (Header, error) {
	height, err := c.TakeU64()
	if err != nil {
		return Header{}, err
	}
	ts, err := c.TakeU64()
	if err != nil {
		return Header{}, err
	}
	prev, err := c.TakeBytesRaw(32)
	if err != nil {
		return Header{}, err
	}
	root, err := c.TakeBytesRaw(32)
	if err != nil {
		return Header{}, err
	}
	var h Header
	h.Height = height
	h.Timestamp = ts
	copy(h.PreviousHash[:], prev)
	copy(h.TxMerkleRoot[:], root)
	return h, nil
}

// Bytes returns the header's canonical encoding, used both to compute
// the block hash (previous_hash == sha256(parent.header_bytes)) and as
// the signing message for the block's signature pairs.
func (h *Header) Bytes() []byte {
	b := NewBuffer(80)
	h.encode(b)
	return b.Bytes()
}

// Hash returns sha256(header bytes).
func (h *Header) Hash() [32]byte { return sha256.Sum256(h.Bytes()) }

// Block is a V0 block: header, signature pairs (the minter's signature
// over the header), and the ordered transaction list.
type Block struct {
	Header       Header
	SigPairs     []txscript.SigPair
	Transactions []TxVariant
}

// NewChild builds the next block in sequence from parent, with txs
// already in their final encoded order. The caller must still call Sign.
func NewChild(parent *Block, txs []TxVariant, timestamp uint64) *Block {
	return &Block{
		Header: Header{
			Height:       parent.Header.Height + 1,
			Timestamp:    timestamp,
			PreviousHash: parent.Header.Hash(),
			TxMerkleRoot: TxMerkleRoot(txs),
		},
		Transactions: txs,
	}
}

// Sign signs the block header with priv and appends the resulting pair,
// keyed by priv's public half. It does not attempt multi-signer block
// signing; the minter is the sole signer in this design (spec.md §4.6).
func (blk *Block) Sign(kp crypto.KeyPair) {
	sig := kp.Private.Sign(blk.Header.Bytes())
	blk.SigPairs = []txscript.SigPair{{PubKey: kp.Public, Sig: sig}}
}

// VerifySignature reports whether the block's sole signature pair is a
// valid signature over its header by the expected minter key.
func (blk *Block) VerifySignature(minter crypto.PublicKey) bool {
	if len(blk.SigPairs) != 1 {
		return false
	}
	p := blk.SigPairs[0]
	return p.PubKey.Equal(minter) && p.PubKey.Verify(blk.Header.Bytes(), p.Sig)
}

// KeepOnly returns a shallow copy of blk retaining only transactions that
// touch an address in addrs, header (and Merkle root) unchanged, so the
// result remains proof-compatible with the original block. Both
// get_filtered_block (spec.md §4.4) and a subscription's per-connection
// block filter (spec.md §3, §4.7) use this to narrow a block to the
// addresses a caller cares about.
func (blk *Block) KeepOnly(addrs map[[20]byte]struct{}) *Block {
	if len(addrs) == 0 {
		out := *blk
		out.Transactions = nil
		return &out
	}
	kept := make([]TxVariant, 0, len(blk.Transactions))
	for _, tx := range blk.Transactions {
		if txTouchesFilter(tx, addrs) {
			kept = append(kept, tx)
		}
	}
	out := *blk
	out.Transactions = kept
	return &out
}

func txTouchesFilter(tx TxVariant, filter map[[20]byte]struct{}) bool {
	addrs := txAddresses(tx)
	for _, a := range addrs {
		if _, ok := filter[a]; ok {
			return true
		}
	}
	return false
}

func txAddresses(tx TxVariant) [][20]byte {
	switch t := tx.(type) {
	case *TransferTx:
		return [][20]byte{t.To}
	case *MintTx:
		return [][20]byte{t.To}
	case *RewardTx:
		return [][20]byte{t.To}
	default:
		return nil
	}
}

// EncodeWithTx writes header || sig_count || sigs || u32 tx_count ||
// each tx via EncodeWithSigs, per spec.md §4.1.
func EncodeWithTx(b *Buffer, blk *Block) {
	blk.Header.encode(b)
	b.PushByte(byte(len(blk.SigPairs)))
	for _, p := range blk.SigPairs {
		b.PushPubKey(p.PubKey)
		b.PushSig(p.Sig)
	}
	b.PushU32(uint32(len(blk.Transactions)))
	for _, tx := range blk.Transactions {
		EncodeWithSigs(b, tx)
	}
}

// MaxTxsPerBlock bounds the transaction count a decoder will accept in a
// single block, guarding against a corrupt length field causing an
// unbounded allocation.
const MaxTxsPerBlock = 1 << 16

// DecodeWithTx is the total decoder counterpart to EncodeWithTx.
func DecodeWithTx(c *Cursor, unit string) (*Block, error) {
	header, err := decodeHeader(c)
	if err != nil {
		return nil, err
	}
	sigs, err := decodeSigPairs(c)
	if err != nil {
		return nil, err
	}
	txCount, err := c.TakeU32()
	if err != nil {
		return nil, err
	}
	if txCount > MaxTxsPerBlock {
		return nil, fmt.Errorf("%w: tx_count %d exceeds max %d", ErrInvalidTag, txCount, MaxTxsPerBlock)
	}
	txs := make([]TxVariant, 0, txCount)
	for i := uint32(0); i < txCount; i++ {
		tx, err := DecodeWithSigs(c, unit)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return &Block{Header: header, SigPairs: sigs, Transactions: txs}, nil
}
