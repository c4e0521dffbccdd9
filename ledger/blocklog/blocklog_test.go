package blocklog

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rewardBlock(t *testing.T, height uint64, prev [32]byte) *chain.Block {
	t.Helper()
	kp, err := crypto.Gen()
	require.NoError(t, err)
	reward := &chain.RewardTx{
		Tx:      chain.Tx{Fee: asset.Zero(), Timestamp: height},
		To:      [20]byte{byte(height)},
		Rewards: asset.New(100, asset.DefaultUnit),
	}
	blk := &chain.Block{
		Header: chain.Header{
			Height:       height,
			Timestamp:    height,
			PreviousHash: prev,
			TxMerkleRoot: chain.TxMerkleRoot([]chain.TxVariant{reward}),
		},
		Transactions: []chain.TxVariant{reward},
	}
	blk.Sign(kp)
	return blk
}

func TestAppendAndReadAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blklog")
	l, err := Open(path, asset.DefaultUnit, true)
	require.NoError(t, err)
	defer l.Close()

	b0 := rewardBlock(t, 0, [32]byte{})
	off0, err := l.Append(b0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off0)

	b1 := rewardBlock(t, 1, b0.Header.Hash())
	off1, err := l.Append(b1)
	require.NoError(t, err)
	assert.Greater(t, off1, off0)

	got0, err := l.ReadAt(off0)
	require.NoError(t, err)
	assert.Equal(t, b0.Header.Height, got0.Header.Height)

	got1, err := l.ReadAt(off1)
	require.NoError(t, err)
	assert.Equal(t, b0.Header.Hash(), got1.Header.PreviousHash)
}

func TestScanVisitsAllFramesInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blklog")
	l, err := Open(path, asset.DefaultUnit, true)
	require.NoError(t, err)
	defer l.Close()

	prev := [32]byte{}
	var blocks []*chain.Block
	for i := uint64(0); i < 3; i++ {
		b := rewardBlock(t, i, prev)
		_, err := l.Append(b)
		require.NoError(t, err)
		prev = b.Header.Hash()
		blocks = append(blocks, b)
	}

	var heights []uint64
	err = l.Scan(func(f Frame) error {
		heights = append(heights, f.Block.Header.Height)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2}, heights)
	_ = blocks
}

func TestOpenAutoTrimsTornTailFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blklog")
	l, err := Open(path, asset.DefaultUnit, true)
	require.NoError(t, err)

	b0 := rewardBlock(t, 0, [32]byte{})
	_, err = l.Append(b0)
	require.NoError(t, err)
	goodTail := l.Tail()
	require.NoError(t, l.Close())

	// corrupt: append a frame whose declared length runs past EOF.
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 1000)
	_, err = f.WriteAt(lenBuf[:], goodTail)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte{0xDE, 0xAD}, goodTail+4)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l2, err := Open(path, asset.DefaultUnit, true)
	require.NoError(t, err)
	defer l2.Close()
	assert.Equal(t, goodTail, l2.Tail())
}

func TestOpenFailsOnTornTailWithoutAutoTrim(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blklog")
	l, err := Open(path, asset.DefaultUnit, true)
	require.NoError(t, err)
	b0 := rewardBlock(t, 0, [32]byte{})
	_, err = l.Append(b0)
	require.NoError(t, err)
	goodTail := l.Tail()
	require.NoError(t, l.Close())

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 1000)
	_, err = f.WriteAt(lenBuf[:], goodTail)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Open(path, asset.DefaultUnit, false)
	assert.Error(t, err)
}
