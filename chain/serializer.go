// Package chain holds the data model shared by the ledger, minter and
// wire packages: transactions, blocks, and the big-endian serializer that
// encodes and decodes them. The serializer generalizes the teacher's
// struct-level Encode/Decode idiom (ser/rlp, called from storage and peer
// code) to the spec's fixed big-endian wire layout rather than RLP.
package chain

import (
	"encoding/binary"
	"fmt"

	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/crypto"
	"github.com/klaytn/graelnode/pkg/script"
)

// Buffer is a growable byte buffer with primitive big-endian writers,
// used to build up encoded transactions and blocks.
type Buffer struct {
	buf []byte
}

// NewBuffer returns an empty Buffer with cap bytes pre-allocated.
func NewBuffer(cap int) *Buffer { return &Buffer{buf: make([]byte, 0, cap)} }

// Bytes returns the accumulated encoded bytes.
func (b *Buffer) Bytes() []byte { return b.buf }

// Len reports the number of bytes written so far.
func (b *Buffer) Len() int { return len(b.buf) }

func (b *Buffer) PushByte(v byte) { b.buf = append(b.buf, v) }

func (b *Buffer) PushBytesRaw(p []byte) { b.buf = append(b.buf, p...) }

func (b *Buffer) PushU32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *Buffer) PushU64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
}

func (b *Buffer) PushI64(v int64) { b.PushU64(uint64(v)) }

// PushBytes writes a length-prefixed byte slice: u32 len || bytes.
func (b *Buffer) PushBytes(p []byte) {
	b.PushU32(uint32(len(p)))
	b.buf = append(b.buf, p...)
}

// PushPubKey writes the raw 32-byte public key.
func (b *Buffer) PushPubKey(k crypto.PublicKey) { b.buf = append(b.buf, k.Bytes[:]...) }

// PushSig writes the raw 64-byte signature.
func (b *Buffer) PushSig(s [64]byte) { b.buf = append(b.buf, s[:]...) }

// PushAsset writes an asset's scaled i64 amount.
func (b *Buffer) PushAsset(a asset.Asset) { b.PushI64(a.Amount) }

// PushScript writes a length-prefixed script.
func (b *Buffer) PushScript(s script.Script) { b.PushBytes(s) }

// Cursor is a read-only, bounds-checked reader over an encoded buffer.
// Every Take* method fails closed: a short read or an invalid tag
// returns an error rather than panicking, per spec.md §4.1.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential decoding.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// Remaining reports how many bytes are left to read.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// ErrShortBuffer is returned whenever a Take* call needs more bytes than
// remain in the cursor.
var ErrShortBuffer = fmt.Errorf("chain: short buffer")

// ErrInvalidTag is returned when a variant tag byte does not match any
// known case.
var ErrInvalidTag = fmt.Errorf("chain: invalid tag")

func (c *Cursor) require(n int) error {
	if c.Remaining() < n {
		return ErrShortBuffer
	}
	return nil
}

func (c *Cursor) TakeByte() (byte, error) {
	if err := c.require(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *Cursor) TakeU32() (uint32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *Cursor) TakeU64() (uint64, error) {
	if err := c.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(c.buf[c.pos:])
	c.pos += 8
	return v, nil
}

func (c *Cursor) TakeI64() (int64, error) {
	v, err := c.TakeU64()
	return int64(v), err
}

func (c *Cursor) TakeBytesRaw(n int) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[c.pos:c.pos+n])
	c.pos += n
	return out, nil
}

// TakeBytes reads a u32-length-prefixed byte slice.
func (c *Cursor) TakeBytes(maxLen uint32) ([]byte, error) {
	n, err := c.TakeU32()
	if err != nil {
		return nil, err
	}
	if maxLen != 0 && n > maxLen {
		return nil, fmt.Errorf("chain: length %d exceeds max %d", n, maxLen)
	}
	return c.TakeBytesRaw(int(n))
}

func (c *Cursor) TakePubKey() (crypto.PublicKey, error) {
	raw, err := c.TakeBytesRaw(32)
	if err != nil {
		return crypto.PublicKey{}, err
	}
	var pk crypto.PublicKey
	copy(pk.Bytes[:], raw)
	return pk, nil
}

func (c *Cursor) TakeSig() ([64]byte, error) {
	raw, err := c.TakeBytesRaw(64)
	if err != nil {
		return [64]byte{}, err
	}
	var sig [64]byte
	copy(sig[:], raw)
	return sig, nil
}

func (c *Cursor) TakeAsset(unit string) (asset.Asset, error) {
	amt, err := c.TakeI64()
	if err != nil {
		return asset.Asset{}, err
	}
	return asset.New(amt, unit), nil
}

func (c *Cursor) TakeScript() (script.Script, error) {
	raw, err := c.TakeBytes(1 << 20)
	if err != nil {
		return nil, err
	}
	return script.Script(raw), nil
}
