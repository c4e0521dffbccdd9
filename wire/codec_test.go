package wire

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/script"
)

// rawFrame builds a frame with an explicit total_length, independent of
// EncodeFrame, so boundary values (spec.md §8 scenario 5) can be tested
// without going through the encoder's own arithmetic.
func rawFrame(totalLen uint32, rest []byte) []byte {
	out := make([]byte, 4+len(rest))
	binary.BigEndian.PutUint32(out[:4], totalLen)
	copy(out[4:], rest)
	return out
}

func TestDecodeFrameRoundTrip(t *testing.T) {
	frame := EncodeFrame(42, TagGetProperties, []byte("body"))
	req, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), req.ID)
	assert.Equal(t, TagGetProperties, req.Tag)
	assert.Equal(t, []byte("body"), req.Body)
}

func TestDecodeFrameDegenerateKeepAlive(t *testing.T) {
	// spec.md §8 scenario 5: a total_length==4 frame carries no id, so it
	// decodes to a keep-alive on ReservedRequestID rather than an error.
	req, err := DecodeFrame(rawFrame(4, nil))
	require.NoError(t, err)
	assert.Equal(t, TagKeepAlive, req.Tag)
	assert.Equal(t, ReservedRequestID, req.ID)
}

func TestDecodeFrameIDOnlyKeepAlive(t *testing.T) {
	// spec.md §4.8: "a payload of only the id with no tag".
	id := make([]byte, 4)
	binary.BigEndian.PutUint32(id, 7)
	req, err := DecodeFrame(rawFrame(8, id))
	require.NoError(t, err)
	assert.Equal(t, TagKeepAlive, req.Tag)
	assert.Equal(t, uint32(7), req.ID)
}

func TestDecodeFrameBelowMinimumCloses(t *testing.T) {
	_, err := DecodeFrame(rawFrame(3, nil))
	assert.Error(t, err)
}

func TestDecodeFrameAboveMaximumCloses(t *testing.T) {
	_, err := DecodeFrame(rawFrame(MaxFrameLen+1, nil))
	assert.Error(t, err)
}

func TestDecodeFrameRejectsReservedRequestID(t *testing.T) {
	body := make([]byte, 5)
	binary.BigEndian.PutUint32(body[:4], ReservedRequestID)
	body[4] = TagGetProperties
	_, err := DecodeFrame(rawFrame(9, body))
	assert.Error(t, err)
}

func TestDecodeFrameTrailingBytesIsBytesRemaining(t *testing.T) {
	frame := EncodeFrame(1, TagGetProperties, nil)
	frame = append(frame, 0xFF)
	_, err := DecodeFrame(frame)
	assert.Error(t, err)
}

func TestEncodeKeepAliveRoundTrip(t *testing.T) {
	frame := EncodeKeepAlive(99)
	req, err := DecodeFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, TagKeepAlive, req.Tag)
	assert.Equal(t, uint32(99), req.ID)
}

func TestAddressInfoRoundTrip(t *testing.T) {
	balance := asset.New(500_00000, asset.DefaultUnit)
	netFee := asset.New(1_00000, asset.DefaultUnit)
	sc := script.PushTrue()

	body := EncodeAddressInfo(balance, netFee, sc)
	gotBalance, gotFee, gotScript, err := DecodeAddressInfo(body, asset.DefaultUnit)
	require.NoError(t, err)
	assert.Equal(t, balance, gotBalance)
	assert.Equal(t, netFee, gotFee)
	assert.Equal(t, sc, gotScript)
}

func TestDecodeAddressSetOversizeFilter(t *testing.T) {
	n := MaxBlockFilterSize + 1
	b := chain.NewBuffer(4 + n*20)
	b.PushU32(uint32(n))
	for i := 0; i < n; i++ {
		var a [20]byte
		a[0] = byte(i)
		b.PushBytesRaw(a[:])
	}
	addrs, err := DecodeAddressSet(b.Bytes())
	require.NoError(t, err)
	assert.Greater(t, len(addrs), MaxBlockFilterSize)
}

func TestDecodeHandshake(t *testing.T) {
	pt, err := DecodeHandshake([]byte{byte(PeerTypeWallet)})
	require.NoError(t, err)
	assert.Equal(t, PeerTypeWallet, pt)

	_, err = DecodeHandshake([]byte{0x7F})
	assert.Error(t, err)
}
