package minter

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/ledger"
	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/crypto"
	"github.com/klaytn/graelnode/pkg/script"
	"github.com/klaytn/graelnode/pkg/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestChain(t *testing.T) (*ledger.Blockchain, crypto.KeyPair, *ledger.GenesisBlockInfo) {
	t.Helper()
	dir := t.TempDir()
	bc, err := ledger.Open(ledger.Options{
		BlockLogPath:     filepath.Join(dir, "blocks.log"),
		IndexDir:         filepath.Join(dir, "index"),
		Unit:             asset.DefaultUnit,
		AutoTrimBlockLog: true,
		MinFee:           asset.New(0, asset.DefaultUnit),
	})
	require.NoError(t, err)
	t.Cleanup(func() { bc.Close() })

	minter, err := crypto.Gen()
	require.NoError(t, err)
	info, err := bc.CreateGenesisBlock(minter, 2, 2)
	require.NoError(t, err)
	return bc, minter, info
}

func mintTo(t *testing.T, bc *ledger.Blockchain, minter crypto.KeyPair, info *ledger.GenesisBlockInfo, to [20]byte, amount asset.Asset, spendScript script.Script) {
	t.Helper()
	head, _ := bc.GetChainHead()
	mint := &chain.MintTx{
		Tx:     chain.Tx{Fee: asset.Zero(), Timestamp: uint64(time.Now().UnixMilli())},
		To:     to,
		Amount: amount,
		Script: spendScript,
	}
	msg := chain.SigningBytes(mint)
	mint.SigPairs = []txscript.SigPair{
		{PubKey: info.WalletKeys[0].Public, Sig: info.WalletKeys[0].Private.Sign(msg)},
		{PubKey: info.WalletKeys[1].Public, Sig: info.WalletKeys[1].Private.Sign(msg)},
	}
	blk := chain.NewChild(head, []chain.TxVariant{mint}, uint64(time.Now().UnixMilli()))
	blk.Sign(minter)
	require.NoError(t, bc.InsertBlock(blk))
}

func TestMempoolPushOrdersByFeeThenTimestamp(t *testing.T) {
	bc, minter, info := openTestChain(t)
	spendScript := script.PushTrue()
	spender, err := crypto.Gen()
	require.NoError(t, err)
	mintTo(t, bc, minter, info, spendScript.Hash(), asset.New(10000000, asset.DefaultUnit), spendScript)

	mp, err := NewMempool(bc)
	require.NoError(t, err)

	mkTransfer := func(fee int64, ts uint64) *chain.TransferTx {
		tx := &chain.TransferTx{
			Tx:     chain.Tx{Fee: asset.New(fee, asset.DefaultUnit), Timestamp: ts},
			From:   spendScript,
			To:     [20]byte{1},
			Amount: asset.New(1, asset.DefaultUnit),
		}
		sig := spender.Private.Sign(chain.SigningBytes(tx))
		tx.SigPairs = []txscript.SigPair{{PubKey: spender.Public, Sig: sig}}
		return tx
	}

	now := uint64(time.Now().UnixMilli())
	low := mkTransfer(1, now+100)
	high := mkTransfer(5, now+200)
	highEarlier := mkTransfer(5, now+50)

	require.NoError(t, mp.Push(low))
	require.NoError(t, mp.Push(high))
	require.NoError(t, mp.Push(highEarlier))

	ordered := mp.DrainForBlock(0)
	require.Len(t, ordered, 3)
	assert.Same(t, highEarlier, ordered[0].(*chain.TransferTx))
	assert.Same(t, high, ordered[1].(*chain.TransferTx))
	assert.Same(t, low, ordered[2].(*chain.TransferTx))
}

func TestMempoolRejectsDuplicatePush(t *testing.T) {
	bc, minter, info := openTestChain(t)
	spendScript := script.PushTrue()
	spender, err := crypto.Gen()
	require.NoError(t, err)
	mintTo(t, bc, minter, info, spendScript.Hash(), asset.New(10000000, asset.DefaultUnit), spendScript)

	mp, err := NewMempool(bc)
	require.NoError(t, err)

	tx := &chain.TransferTx{
		Tx:     chain.Tx{Fee: asset.Zero(), Timestamp: uint64(time.Now().UnixMilli())},
		From:   spendScript,
		To:     [20]byte{7},
		Amount: asset.New(1, asset.DefaultUnit),
	}
	sig := spender.Private.Sign(chain.SigningBytes(tx))
	tx.SigPairs = []txscript.SigPair{{PubKey: spender.Public, Sig: sig}}

	require.NoError(t, mp.Push(tx))
	assert.Error(t, mp.Push(tx))
}

func TestMempoolRemoveIncludedDropsFromPending(t *testing.T) {
	bc, minter, info := openTestChain(t)
	spendScript := script.PushTrue()
	spender, err := crypto.Gen()
	require.NoError(t, err)
	mintTo(t, bc, minter, info, spendScript.Hash(), asset.New(10000000, asset.DefaultUnit), spendScript)

	mp, err := NewMempool(bc)
	require.NoError(t, err)

	tx := &chain.TransferTx{
		Tx:     chain.Tx{Fee: asset.Zero(), Timestamp: uint64(time.Now().UnixMilli())},
		From:   spendScript,
		To:     [20]byte{7},
		Amount: asset.New(1, asset.DefaultUnit),
	}
	sig := spender.Private.Sign(chain.SigningBytes(tx))
	tx.SigPairs = []txscript.SigPair{{PubKey: spender.Public, Sig: sig}}

	require.NoError(t, mp.Push(tx))
	assert.Equal(t, 1, mp.Len())
	mp.RemoveIncluded([]chain.TxVariant{tx})
	assert.Equal(t, 0, mp.Len())
}
