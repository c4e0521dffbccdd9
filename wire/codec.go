// Package wire implements the framed binary protocol (spec.md §4.8),
// the per-connection reader/writer/heartbeat handler (§4.9), and the
// subscription pool (§4.7). Grounded on the Serializer (chain package)
// plus klaytn's ser/rlp.RawValue idea of an opaque length-prefixed
// payload, generalized to this spec's fixed frame/tag layout. Transport
// is github.com/clevergo/websocket (the teacher's own go.mod
// dependency) carrying binary frames.
package wire

import (
	"encoding/binary"

	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/internal/xerr"
	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/script"
)

// ReservedRequestID is never assigned to a client request; the server
// uses it to tag unsolicited pushes (subscription block notifications)
// and connection-level errors not tied to any single request.
const ReservedRequestID uint32 = 0xFFFFFFFF

// MinFrameLen and MaxFrameLen bound the wire value of total_length
// itself (spec.md §4.8: total_length ∈ [5, 5_242_880]). They are not a
// block-size limit: no whole-block byte limit is enforced anywhere; the
// block decoder only bounds the tx count (chain.MaxTxsPerBlock) and each
// script or attachment (1 MiB, chain/serializer.go's TakeBytes(1<<20)
// callers). total_length==4, below MinFrameLen, is
// not an error: it's the degenerate keep-alive of spec.md §8 scenario
// 5, carved out of the general range on purpose.
const (
	MinFrameLen = 5
	MaxFrameLen = 5 * 1024 * 1024
)

// degenerateKeepAliveLen is total_length==4: a length prefix with zero
// payload bytes following it, carrying no request id at all. spec.md
// §8 scenario 5 requires this be answered rather than closed; since no
// id was transmitted, the reply uses ReservedRequestID.
const degenerateKeepAliveLen = 4

// Request/response tags. Request tags are < 0x80; response tags are
// >= 0x80. TagRespTotalFee is given its own tag distinct from
// TagRespBalance (spec.md §9 Open Question 1), intentionally breaking
// compatibility with a legacy single-tag encoding. TagKeepAlive is a
// sentinel Request.Tag value DecodeFrame produces for a payload with
// no tag byte (spec.md §4.8: "a payload of only the id with no tag");
// it is never sent on the wire itself.
const (
	TagGetProperties    byte = 0x00
	TagGetAddressInfo   byte = 0x01
	TagGetBlock         byte = 0x02
	TagGetFilteredBlock byte = 0x03
	TagGetBlockRange    byte = 0x04
	TagBroadcastTx      byte = 0x05
	TagSubscribe        byte = 0x06
	TagUnsubscribe      byte = 0x07
	TagHandshake        byte = 0x08
	TagGetTotalFee      byte = 0x09
	TagSetBlockFilter   byte = 0x0A
	TagClearBlockFilter byte = 0x0B

	TagRespProperties     byte = 0x80
	TagRespBalance        byte = 0x81
	TagRespTotalFee       byte = 0x82
	TagRespBlock          byte = 0x83
	TagRespBlockRangeItem byte = 0x84
	TagRespBlockRangeEnd  byte = 0x85
	TagRespOk             byte = 0x86
	TagRespError          byte = 0xFF

	TagKeepAlive byte = 0xFE
)

// Request is a decoded inbound frame: the caller dispatches further
// decoding of Body based on Tag.
type Request struct {
	ID   uint32
	Tag  byte
	Body []byte
}

// EncodeFrame writes the wire layout: u32 total_length || (u32
// request_id || tag byte || body), where total_length is 4 plus the
// byte count following it (original_source's
// net/rpc/codec.rs: buf.put_u32_be(4 + payload.len())).
func EncodeFrame(id uint32, tag byte, body []byte) []byte {
	inner := chain.NewBuffer(5 + len(body))
	inner.PushU32(id)
	inner.PushByte(tag)
	inner.PushBytesRaw(body)

	out := chain.NewBuffer(4 + inner.Len())
	out.PushU32(uint32(inner.Len() + 4))
	out.PushBytesRaw(inner.Bytes())
	return out.Bytes()
}

// EncodeKeepAlive writes an id-only frame with no tag byte: the wire
// form of the keep-alive message (spec.md §4.8), used both to echo a
// peer's keep-alive and to originate one.
func EncodeKeepAlive(id uint32) []byte {
	out := chain.NewBuffer(8)
	out.PushU32(8)
	out.PushU32(id)
	return out.Bytes()
}

// DecodeFrame parses one complete WebSocket binary message. total_length
// (the leading u32) is 4 plus the byte count of everything after it, so
// a well-formed message's total length in bytes equals total_length
// exactly. Two keep-alive shapes short-circuit the general
// [MinFrameLen, MaxFrameLen] range (spec.md §4.8, §8 scenario 5):
// total_length==4 (no id at all, answered on ReservedRequestID) and a
// payload that is only the 4-byte id with no tag (answered on that id).
func DecodeFrame(msg []byte) (*Request, error) {
	if len(msg) < 4 {
		return nil, xerr.Wrap(xerr.KindIO, chain.ErrShortBuffer, "frame length prefix")
	}
	totalLen := binary.BigEndian.Uint32(msg[:4])
	rest := msg[4:]

	if totalLen == degenerateKeepAliveLen {
		return &Request{ID: ReservedRequestID, Tag: TagKeepAlive}, nil
	}
	if totalLen < MinFrameLen || totalLen > MaxFrameLen {
		return nil, xerr.New(xerr.KindInvalidRequest, "total_length out of range")
	}

	payloadLen := totalLen - 4
	if uint32(len(rest)) < payloadLen {
		return nil, xerr.Wrap(xerr.KindIO, chain.ErrShortBuffer, "frame body")
	}
	if uint32(len(rest)) > payloadLen {
		return nil, xerr.New(xerr.KindBytesRemaining, "")
	}

	c := chain.NewCursor(rest)
	id, err := c.TakeU32()
	if err != nil {
		return nil, xerr.Wrap(xerr.KindIO, err, "request_id")
	}
	if id == ReservedRequestID {
		return nil, xerr.New(xerr.KindInvalidRequest, "request id 0xFFFFFFFF is reserved")
	}
	if c.Remaining() == 0 {
		return &Request{ID: id, Tag: TagKeepAlive}, nil
	}
	tag, err := c.TakeByte()
	if err != nil {
		return nil, xerr.Wrap(xerr.KindIO, err, "tag")
	}
	body, err := c.TakeBytesRaw(c.Remaining())
	if err != nil {
		return nil, xerr.Wrap(xerr.KindIO, err, "body")
	}
	return &Request{ID: id, Tag: tag, Body: body}, nil
}

// --- response body encoders ---

func EncodeTotalFee(a asset.Asset) []byte {
	b := chain.NewBuffer(8)
	b.PushAsset(a)
	return b.Bytes()
}

// EncodeAddressInfo renders get_address_info's {balance, net_fee,
// script?} (spec.md §4.4): two assets, as the legacy Balance/TotalFee
// tags both do, followed by a length-prefixed script that is empty when
// the address's spending script isn't known to the chain.
func EncodeAddressInfo(balance, netFee asset.Asset, sc script.Script) []byte {
	b := chain.NewBuffer(16 + len(sc))
	b.PushAsset(balance)
	b.PushAsset(netFee)
	b.PushScript(sc)
	return b.Bytes()
}

func DecodeAddressInfo(body []byte, unit string) (balance, netFee asset.Asset, sc script.Script, err error) {
	c := chain.NewCursor(body)
	if balance, err = c.TakeAsset(unit); err != nil {
		return
	}
	if netFee, err = c.TakeAsset(unit); err != nil {
		return
	}
	sc, err = c.TakeScript()
	return
}

func EncodeBlock(blk *chain.Block) []byte {
	b := chain.NewBuffer(4096)
	chain.EncodeWithTx(b, blk)
	return b.Bytes()
}

func DecodeBlock(body []byte, unit string) (*chain.Block, error) {
	return chain.DecodeWithTx(chain.NewCursor(body), unit)
}

// EncodeError renders a connection/request-level failure as the wire's
// stable error tag, matching spec.md §7's taxonomy. ErrorTag classifies
// an xerr.Kind for the wire, independent of the Go error type.
func EncodeError(kind xerr.Kind, reason string) []byte {
	b := chain.NewBuffer(1 + len(reason))
	b.PushByte(ErrorTag(kind))
	b.PushBytes([]byte(reason))
	return b.Bytes()
}

// ErrorTag maps an xerr.Kind to its stable wire byte.
func ErrorTag(k xerr.Kind) byte {
	switch k {
	case xerr.KindIO:
		return 0
	case xerr.KindBytesRemaining:
		return 1
	case xerr.KindInvalidRequest:
		return 2
	case xerr.KindInvalidHeight:
		return 3
	case xerr.KindTxValidation:
		return 4
	default:
		return 0xFF
	}
}

// --- request body decoders ---

func DecodeHeightRequest(body []byte) (uint64, error) {
	c := chain.NewCursor(body)
	return c.TakeU64()
}

func DecodeAddressRequest(body []byte) ([20]byte, error) {
	c := chain.NewCursor(body)
	raw, err := c.TakeBytesRaw(20)
	if err != nil {
		return [20]byte{}, err
	}
	var addr [20]byte
	copy(addr[:], raw)
	return addr, nil
}

// DecodeFilteredBlockRequest reads height followed by the address-set
// body shape DecodeAddressSet also serves SetBlockFilter with.
func DecodeFilteredBlockRequest(body []byte) (uint64, map[[20]byte]struct{}, error) {
	c := chain.NewCursor(body)
	height, err := c.TakeU64()
	if err != nil {
		return 0, nil, err
	}
	addrs, err := decodeAddressSet(c)
	return height, addrs, err
}

// MaxBlockFilterSize bounds a connection's block filter (spec.md §3,
// §7: "filter >16" is InvalidRequest).
const MaxBlockFilterSize = 16

// DecodeAddressSet reads a u32 address count followed by that many
// 20-byte addresses, SetBlockFilter's request body (spec.md §4.8
// table).
func DecodeAddressSet(body []byte) (map[[20]byte]struct{}, error) {
	return decodeAddressSet(chain.NewCursor(body))
}

func decodeAddressSet(c *chain.Cursor) (map[[20]byte]struct{}, error) {
	n, err := c.TakeU32()
	if err != nil {
		return nil, err
	}
	addrs := make(map[[20]byte]struct{}, n)
	for i := uint32(0); i < n; i++ {
		raw, err := c.TakeBytesRaw(20)
		if err != nil {
			return nil, err
		}
		var addr [20]byte
		copy(addr[:], raw)
		addrs[addr] = struct{}{}
	}
	return addrs, nil
}

// PeerType is Handshake's payload (spec.md §4.8).
type PeerType byte

const (
	PeerTypeNode   PeerType = 0
	PeerTypeWallet PeerType = 1
)

func DecodeHandshake(body []byte) (PeerType, error) {
	c := chain.NewCursor(body)
	b, err := c.TakeByte()
	if err != nil {
		return 0, err
	}
	switch pt := PeerType(b); pt {
	case PeerTypeNode, PeerTypeWallet:
		return pt, nil
	default:
		return 0, xerr.New(xerr.KindInvalidRequest, "invalid peer_type")
	}
}

func EncodeHandshake(pt PeerType) []byte {
	b := chain.NewBuffer(1)
	b.PushByte(byte(pt))
	return b.Bytes()
}

// DecodeBlockRangeRequest reads the inclusive [start, end] height range
// a streaming GetBlockRange request asks for.
func DecodeBlockRangeRequest(body []byte) (start, end uint64, err error) {
	c := chain.NewCursor(body)
	start, err = c.TakeU64()
	if err != nil {
		return 0, 0, err
	}
	end, err = c.TakeU64()
	return start, end, err
}

func EncodeHeightRequest(height uint64) []byte {
	b := chain.NewBuffer(8)
	b.PushU64(height)
	return b.Bytes()
}

func EncodeAddressRequest(addr [20]byte) []byte {
	b := chain.NewBuffer(20)
	b.PushBytesRaw(addr[:])
	return b.Bytes()
}

func EncodeTxBody(tx chain.TxVariant) []byte {
	b := chain.NewBuffer(512)
	chain.EncodeWithSigs(b, tx)
	return b.Bytes()
}

func DecodeTxBody(body []byte, unit string) (chain.TxVariant, error) {
	return chain.DecodeWithSigs(chain.NewCursor(body), unit)
}
