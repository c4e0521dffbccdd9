package chain

import (
	"testing"

	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/crypto"
	"github.com/klaytn/graelnode/pkg/script"
	"github.com/klaytn/graelnode/pkg/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedTransfer(t *testing.T) *TransferTx {
	t.Helper()
	kp, err := crypto.Gen()
	require.NoError(t, err)

	tx := &TransferTx{
		Tx: Tx{
			Fee:       asset.New(100, asset.DefaultUnit),
			Timestamp: 1234,
		},
		From:   script.PushTrue(),
		To:     [20]byte{1, 2, 3},
		Amount: asset.New(5000, asset.DefaultUnit),
		Memo:   []byte("hi"),
	}
	sig := kp.Private.Sign(SigningBytes(tx))
	tx.SigPairs = []txscript.SigPair{{PubKey: kp.Public, Sig: sig}}
	return tx
}

func TestTxRoundTrip(t *testing.T) {
	tx := signedTransfer(t)

	buf := NewBuffer(256)
	EncodeWithSigs(buf, tx)

	decoded, err := DecodeWithSigs(NewCursor(buf.Bytes()), asset.DefaultUnit)
	require.NoError(t, err)

	buf2 := NewBuffer(256)
	EncodeWithSigs(buf2, decoded)
	assert.Equal(t, buf.Bytes(), buf2.Bytes())

	dt, ok := decoded.(*TransferTx)
	require.True(t, ok)
	assert.Equal(t, tx.To, dt.To)
	assert.Equal(t, tx.Amount, dt.Amount)
	assert.True(t, txscript.VerifyAll(SigningBytes(decoded), dt.SigPairs))
}

func TestTxDecodeShortBufferFailsClosed(t *testing.T) {
	_, err := DecodeWithSigs(NewCursor([]byte{0, 1, 2}), asset.DefaultUnit)
	assert.Error(t, err)
}

func TestTxDecodeInvalidTag(t *testing.T) {
	buf := NewBuffer(16)
	buf.PushByte(0xFF)
	encodeTxHeader(buf, &Tx{Fee: asset.Zero(), Timestamp: 0})
	buf.PushByte(0)
	_, err := DecodeWithSigs(NewCursor(buf.Bytes()), asset.DefaultUnit)
	assert.ErrorIs(t, err, ErrInvalidTag)
}

func TestMintTxRoundTrip(t *testing.T) {
	kp, err := crypto.Gen()
	require.NoError(t, err)
	tx := &MintTx{
		Tx:             Tx{Fee: asset.Zero(), Timestamp: 99},
		To:             [20]byte{9},
		Amount:         asset.New(100000000, asset.DefaultUnit),
		Attachment:     []byte{1, 2, 3},
		AttachmentName: "proof.txt",
		Script:         script.PushFalse(),
	}
	sig := kp.Private.Sign(SigningBytes(tx))
	tx.SigPairs = []txscript.SigPair{{PubKey: kp.Public, Sig: sig}}

	buf := NewBuffer(256)
	EncodeWithSigs(buf, tx)
	decoded, err := DecodeWithSigs(NewCursor(buf.Bytes()), asset.DefaultUnit)
	require.NoError(t, err)
	dm := decoded.(*MintTx)
	assert.Equal(t, tx.AttachmentName, dm.AttachmentName)
	assert.Equal(t, tx.Amount, dm.Amount)
}
