package chain

import (
	"crypto/sha256"
	"fmt"

	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/crypto"
	"github.com/klaytn/graelnode/pkg/script"
	"github.com/klaytn/graelnode/pkg/txscript"
)

// MaxSigPairs is the hard cap on signature pairs per transaction,
// spec.md §3.
const MaxSigPairs = 8

// TxKind tags the variant of a TxVariant for wire and storage encoding.
// Tagging (V0-style) leaves room for future variants: decoders fail
// closed on an unrecognized tag rather than silently skipping fields,
// per spec.md §9.
type TxKind byte

const (
	TxTransfer TxKind = 0
	TxMint     TxKind = 1
	TxReward   TxKind = 2
	TxOwner    TxKind = 3
)

func (k TxKind) String() string {
	switch k {
	case TxTransfer:
		return "TransferTx"
	case TxMint:
		return "MintTx"
	case TxReward:
		return "RewardTx"
	case TxOwner:
		return "OwnerTx"
	default:
		return "UnknownTx"
	}
}

// Tx is the common header every transaction variant embeds.
type Tx struct {
	Fee       asset.Asset
	Timestamp uint64 // ms since epoch
	SigPairs  []txscript.SigPair
}

// TransferTx moves funds from a spending script to a destination address.
type TransferTx struct {
	Tx
	From   script.Script
	To     [20]byte
	Amount asset.Asset
	Memo   []byte
}

// MintTx is issued by the owner wallet (2-of-N multisig) to create new
// supply for a target address.
type MintTx struct {
	Tx
	To             [20]byte
	Amount         asset.Asset
	Attachment     []byte
	AttachmentName string
	Script         script.Script
}

// RewardTx credits the block producer's address; only valid as the last
// transaction in a block, carries no signatures.
type RewardTx struct {
	Tx
	To      [20]byte
	Rewards asset.Asset
}

// OwnerTx rotates the minter key and/or the owner wallet script.
type OwnerTx struct {
	Tx
	MinterKey    crypto.PublicKey
	WalletScript script.Script
}

// TxVariant is implemented by every transaction kind.
type TxVariant interface {
	Kind() TxKind
	Base() *Tx
	encodeBody(b *Buffer)
}

func (t *TransferTx) Kind() TxKind { return TxTransfer }
func (t *TransferTx) Base() *Tx    { return &t.Tx }

func (t *MintTx) Kind() TxKind { return TxMint }
func (t *MintTx) Base() *Tx    { return &t.Tx }

func (t *RewardTx) Kind() TxKind { return TxReward }
func (t *RewardTx) Base() *Tx    { return &t.Tx }

func (t *OwnerTx) Kind() TxKind { return TxOwner }
func (t *OwnerTx) Base() *Tx    { return &t.Tx }

func encodeTxHeader(b *Buffer, h *Tx) {
	b.PushAsset(h.Fee)
	b.PushU64(h.Timestamp)
}

func decodeTxHeader(c *Cursor, unit string) (Tx, error) {
	fee, err := c.TakeAsset(unit)
	if err != nil {
		return Tx{}, err
	}
	ts, err := c.TakeU64()
	if err != nil {
		return Tx{}, err
	}
	return Tx{Fee: fee, Timestamp: ts}, nil
}

func (t *TransferTx) encodeBody(b *Buffer) {
	b.PushByte(byte(TxTransfer))
	encodeTxHeader(b, &t.Tx)
	b.PushScript(t.From)
	b.PushBytesRaw(t.To[:])
	b.PushAsset(t.Amount)
	b.PushBytes(t.Memo)
}

func (t *MintTx) encodeBody(b *Buffer) {
	b.PushByte(byte(TxMint))
	encodeTxHeader(b, &t.Tx)
	b.PushBytesRaw(t.To[:])
	b.PushAsset(t.Amount)
	b.PushBytes(t.Attachment)
	b.PushBytes([]byte(t.AttachmentName))
	b.PushScript(t.Script)
}

func (t *RewardTx) encodeBody(b *Buffer) {
	b.PushByte(byte(TxReward))
	encodeTxHeader(b, &t.Tx)
	b.PushBytesRaw(t.To[:])
	b.PushAsset(t.Rewards)
}

func (t *OwnerTx) encodeBody(b *Buffer) {
	b.PushByte(byte(TxOwner))
	encodeTxHeader(b, &t.Tx)
	b.PushPubKey(t.MinterKey)
	b.PushScript(t.WalletScript)
}

func decodeSigPairs(c *Cursor) ([]txscript.SigPair, error) {
	n, err := c.TakeByte()
	if err != nil {
		return nil, err
	}
	pairs := make([]txscript.SigPair, 0, n)
	for i := 0; i < int(n); i++ {
		pk, err := c.TakePubKey()
		if err != nil {
			return nil, err
		}
		sig, err := c.TakeSig()
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, txscript.SigPair{PubKey: pk, Sig: sig})
	}
	return pairs, nil
}

func takeAddress(c *Cursor) ([20]byte, error) {
	raw, err := c.TakeBytesRaw(20)
	if err != nil {
		return [20]byte{}, err
	}
	var out [20]byte
	copy(out[:], raw)
	return out, nil
}

// EncodeWithSigs writes tag || header || variant body || sig_count ||
// pairs, per spec.md §4.1.
func EncodeWithSigs(b *Buffer, tx TxVariant) {
	tx.encodeBody(b)
	pairs := tx.Base().SigPairs
	b.PushByte(byte(len(pairs)))
	for _, p := range pairs {
		b.PushPubKey(p.PubKey)
		b.PushSig(p.Sig)
	}
}

// SigningBytes returns the canonical header+body bytes a signer must sign
// over: everything EncodeWithSigs would write up to (not including) the
// signature section.
func SigningBytes(tx TxVariant) []byte {
	b := NewBuffer(256)
	tx.encodeBody(b)
	return b.Bytes()
}

// Hash returns sha256(EncodeWithSigs(tx)), used for mempool de-duplication
// and the replay-window uniqueness check (spec.md §4.4 step 4).
func Hash(tx TxVariant) [32]byte {
	b := NewBuffer(256)
	EncodeWithSigs(b, tx)
	return sha256.Sum256(b.Bytes())
}

// DecodeWithSigs is the total decoder counterpart to EncodeWithSigs: a
// short read or unrecognized tag fails with an error, never a panic.
func DecodeWithSigs(c *Cursor, unit string) (TxVariant, error) {
	tag, err := c.TakeByte()
	if err != nil {
		return nil, err
	}
	header, err := decodeTxHeader(c, unit)
	if err != nil {
		return nil, err
	}

	switch TxKind(tag) {
	case TxTransfer:
		from, err := c.TakeScript()
		if err != nil {
			return nil, err
		}
		to, err := takeAddress(c)
		if err != nil {
			return nil, err
		}
		amount, err := c.TakeAsset(unit)
		if err != nil {
			return nil, err
		}
		memo, err := c.TakeBytes(1 << 16)
		if err != nil {
			return nil, err
		}
		sigs, err := decodeSigPairs(c)
		if err != nil {
			return nil, err
		}
		header.SigPairs = sigs
		return &TransferTx{Tx: header, From: from, To: to, Amount: amount, Memo: memo}, nil
	case TxMint:
		to, err := takeAddress(c)
		if err != nil {
			return nil, err
		}
		amount, err := c.TakeAsset(unit)
		if err != nil {
			return nil, err
		}
		attachment, err := c.TakeBytes(1 << 20)
		if err != nil {
			return nil, err
		}
		nameRaw, err := c.TakeBytes(256)
		if err != nil {
			return nil, err
		}
		sc, err := c.TakeScript()
		if err != nil {
			return nil, err
		}
		sigs, err := decodeSigPairs(c)
		if err != nil {
			return nil, err
		}
		header.SigPairs = sigs
		return &MintTx{Tx: header, To: to, Amount: amount, Attachment: attachment, AttachmentName: string(nameRaw), Script: sc}, nil
	case TxReward:
		to, err := takeAddress(c)
		if err != nil {
			return nil, err
		}
		rewards, err := c.TakeAsset(unit)
		if err != nil {
			return nil, err
		}
		sigs, err := decodeSigPairs(c)
		if err != nil {
			return nil, err
		}
		header.SigPairs = sigs
		return &RewardTx{Tx: header, To: to, Rewards: rewards}, nil
	case TxOwner:
		minterKey, err := c.TakePubKey()
		if err != nil {
			return nil, err
		}
		walletScript, err := c.TakeScript()
		if err != nil {
			return nil, err
		}
		sigs, err := decodeSigPairs(c)
		if err != nil {
			return nil, err
		}
		header.SigPairs = sigs
		return &OwnerTx{Tx: header, MinterKey: minterKey, WalletScript: walletScript}, nil
	default:
		return nil, fmt.Errorf("%w: tx tag %d", ErrInvalidTag, tag)
	}
}
