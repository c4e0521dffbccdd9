package chain

import (
	"testing"

	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genesisLike(t *testing.T) *Block {
	t.Helper()
	return &Block{Header: Header{Height: 0, Timestamp: 0}}
}

func TestBlockRoundTrip(t *testing.T) {
	kp, err := crypto.Gen()
	require.NoError(t, err)

	parent := genesisLike(t)
	reward := &RewardTx{
		Tx:      Tx{Fee: asset.Zero(), Timestamp: 10},
		To:      [20]byte{7},
		Rewards: asset.New(300000, asset.DefaultUnit),
	}
	child := NewChild(parent, []TxVariant{reward}, 10)
	child.Sign(kp)

	assert.Equal(t, uint64(1), child.Header.Height)
	assert.Equal(t, parent.Header.Hash(), child.Header.PreviousHash)
	assert.True(t, child.VerifySignature(kp.Public))

	buf := NewBuffer(512)
	EncodeWithTx(buf, child)
	decoded, err := DecodeWithTx(NewCursor(buf.Bytes()), asset.DefaultUnit)
	require.NoError(t, err)

	buf2 := NewBuffer(512)
	EncodeWithTx(buf2, decoded)
	assert.Equal(t, buf.Bytes(), buf2.Bytes())
	assert.True(t, decoded.VerifySignature(kp.Public))
}

func TestKeepOnlyPreservesMerkleRoot(t *testing.T) {
	kp, err := crypto.Gen()
	require.NoError(t, err)
	parent := genesisLike(t)

	keep := &RewardTx{Tx: Tx{Fee: asset.Zero(), Timestamp: 1}, To: [20]byte{1}, Rewards: asset.New(1, asset.DefaultUnit)}
	strip := &RewardTx{Tx: Tx{Fee: asset.Zero(), Timestamp: 2}, To: [20]byte{2}, Rewards: asset.New(2, asset.DefaultUnit)}
	blk := NewChild(parent, []TxVariant{keep, strip}, 1)
	blk.Sign(kp)

	filtered := blk.KeepOnly(map[[20]byte]struct{}{{1}: {}})
	assert.Len(t, filtered.Transactions, 1)
	assert.Equal(t, blk.Header.TxMerkleRoot, filtered.Header.TxMerkleRoot)
}

func TestMerkleRootEmptyIsZero(t *testing.T) {
	assert.Equal(t, [32]byte{}, MerkleRoot(nil))
}
