package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/crypto"
	"github.com/klaytn/graelnode/pkg/script"
	"github.com/klaytn/graelnode/pkg/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestChain(t *testing.T) *Blockchain {
	t.Helper()
	dir := t.TempDir()
	bc, err := Open(Options{
		BlockLogPath:     filepath.Join(dir, "blocks.log"),
		IndexDir:         filepath.Join(dir, "index"),
		Unit:             asset.DefaultUnit,
		AutoTrimBlockLog: true,
		MinFee:           asset.New(0, asset.DefaultUnit),
	})
	require.NoError(t, err)
	t.Cleanup(func() { bc.Close() })
	return bc
}

func signTx(kp crypto.KeyPair, tx chain.TxVariant) {
	sig := kp.Private.Sign(chain.SigningBytes(tx))
	tx.Base().SigPairs = []txscript.SigPair{{PubKey: kp.Public, Sig: sig}}
}

func TestCreateGenesisBlockThenInsertReward(t *testing.T) {
	bc := openTestChain(t)
	assert.True(t, bc.IsEmpty())

	minter, err := crypto.Gen()
	require.NoError(t, err)
	info, err := bc.CreateGenesisBlock(minter, 3, 2)
	require.NoError(t, err)
	assert.Len(t, info.WalletKeys, 3)
	assert.False(t, bc.IsEmpty())

	height, ok := bc.GetChainHeight()
	require.True(t, ok)
	assert.Equal(t, uint64(0), height)

	head, ok := bc.GetChainHead()
	require.True(t, ok)

	miner := [20]byte{9}
	reward := &chain.RewardTx{
		Tx:      chain.Tx{Fee: asset.Zero(), Timestamp: uint64(time.Now().UnixMilli())},
		To:      miner,
		Rewards: asset.New(500000, asset.DefaultUnit),
	}
	blk := chain.NewChild(head, []chain.TxVariant{reward}, uint64(time.Now().UnixMilli()))
	blk.Sign(minter)

	require.NoError(t, bc.InsertBlock(blk))

	height, ok = bc.GetChainHeight()
	require.True(t, ok)
	assert.Equal(t, uint64(1), height)

	info2 := bc.GetAddressInfo(miner)
	assert.Equal(t, asset.New(500000, asset.DefaultUnit), info2.Balance)

	props, err := bc.GetProperties()
	require.NoError(t, err)
	assert.Equal(t, asset.New(500000, asset.DefaultUnit), props.Supply)
}

func TestInsertBlockRejectsWrongHeight(t *testing.T) {
	bc := openTestChain(t)
	minter, err := crypto.Gen()
	require.NoError(t, err)
	_, err = bc.CreateGenesisBlock(minter, 2, 2)
	require.NoError(t, err)

	head, _ := bc.GetChainHead()
	reward := &chain.RewardTx{Tx: chain.Tx{Fee: asset.Zero(), Timestamp: uint64(time.Now().UnixMilli())}, To: [20]byte{1}, Rewards: asset.New(1, asset.DefaultUnit)}
	blk := chain.NewChild(head, []chain.TxVariant{reward}, uint64(time.Now().UnixMilli()))
	blk.Header.Height = 5 // corrupt
	blk.Sign(minter)

	err = bc.InsertBlock(blk)
	assert.Error(t, err)
}

func TestMintThenTransferFlow(t *testing.T) {
	bc := openTestChain(t)
	minter, err := crypto.Gen()
	require.NoError(t, err)
	info, err := bc.CreateGenesisBlock(minter, 3, 2)
	require.NoError(t, err)

	spender, err := crypto.Gen()
	require.NoError(t, err)
	spendScript := script.PushTrue()
	spendAddr := spendScript.Hash()

	head, _ := bc.GetChainHead()
	mint := &chain.MintTx{
		Tx:     chain.Tx{Fee: asset.Zero(), Timestamp: uint64(time.Now().UnixMilli())},
		To:     spendAddr,
		Amount: asset.New(1000000, asset.DefaultUnit),
		Script: spendScript,
	}
	signMultisig(mint, info.WalletKeys[:2])
	blk := chain.NewChild(head, []chain.TxVariant{mint}, uint64(time.Now().UnixMilli()))
	blk.Sign(minter)
	require.NoError(t, bc.InsertBlock(blk))

	assert.Equal(t, asset.New(1000000, asset.DefaultUnit), bc.GetAddressInfo(spendAddr).Balance)

	head, _ = bc.GetChainHead()
	dest := [20]byte{42}
	transfer := &chain.TransferTx{
		Tx:     chain.Tx{Fee: asset.Zero(), Timestamp: uint64(time.Now().UnixMilli())},
		From:   spendScript,
		To:     dest,
		Amount: asset.New(400000, asset.DefaultUnit),
	}
	signTx(spender, transfer)
	blk2 := chain.NewChild(head, []chain.TxVariant{transfer}, uint64(time.Now().UnixMilli()))
	blk2.Sign(minter)
	require.NoError(t, bc.InsertBlock(blk2))

	assert.Equal(t, asset.New(600000, asset.DefaultUnit), bc.GetAddressInfo(spendAddr).Balance)
	assert.Equal(t, asset.New(400000, asset.DefaultUnit), bc.GetAddressInfo(dest).Balance)
}

func signMultisig(tx chain.TxVariant, signers []crypto.KeyPair) {
	msg := chain.SigningBytes(tx)
	pairs := make([]txscript.SigPair, len(signers))
	for i, kp := range signers {
		pairs[i] = txscript.SigPair{PubKey: kp.Public, Sig: kp.Private.Sign(msg)}
	}
	tx.Base().SigPairs = pairs
}

func TestVerifyTxRejectsDuplicateWithinReplayWindow(t *testing.T) {
	bc := openTestChain(t)
	minter, err := crypto.Gen()
	require.NoError(t, err)
	info, err := bc.CreateGenesisBlock(minter, 2, 2)
	require.NoError(t, err)

	// A MintTx passes every step before the replay check, so once its
	// block is inserted the only reason left to reject it is uniqueness.
	head, _ := bc.GetChainHead()
	mint := &chain.MintTx{
		Tx:     chain.Tx{Fee: asset.Zero(), Timestamp: uint64(time.Now().UnixMilli())},
		To:     [20]byte{1},
		Amount: asset.New(1, asset.DefaultUnit),
		Script: script.PushTrue(),
	}
	signMultisig(mint, info.WalletKeys)
	require.NoError(t, bc.VerifyTx(mint))
	blk := chain.NewChild(head, []chain.TxVariant{mint}, uint64(time.Now().UnixMilli()))
	blk.Sign(minter)
	require.NoError(t, bc.InsertBlock(blk))

	err = bc.VerifyTx(mint)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DuplicateTransaction")
}
