package minter

import (
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

func TestForceProduceBlockAdvancesChain(t *testing.T) {
	bc, minterKey, _ := openTestChain(t)
	mp, err := NewMempool(bc)
	require.NoError(t, err)

	m := New(bc, mp, Options{
		Key:           minterKey,
		RewardAddr:    [20]byte{3},
		RewardAmount:  asset.New(250000, asset.DefaultUnit),
		BlockInterval: time.Hour,
	})

	require.NoError(t, m.ForceProduceBlock())
	assert.Equal(t, StateIdle, m.State())

	height, ok := bc.GetChainHeight()
	require.True(t, ok)
	assert.Equal(t, uint64(1), height)
	assert.Equal(t, asset.New(250000, asset.DefaultUnit), m.GetAddrInfo([20]byte{3}).Balance)
}

func TestForceProduceBlockIncludesPendingTxAndClearsPool(t *testing.T) {
	bc, minterKey, info := openTestChain(t)
	spendScript := script.PushTrue()
	spender, err := crypto.Gen()
	require.NoError(t, err)
	mintTo(t, bc, minterKey, info, spendScript.Hash(), asset.New(5000000, asset.DefaultUnit), spendScript)

	mp, err := NewMempool(bc)
	require.NoError(t, err)

	tx := &chain.TransferTx{
		Tx:     chain.Tx{Fee: asset.Zero(), Timestamp: uint64(time.Now().UnixMilli())},
		From:   spendScript,
		To:     [20]byte{8},
		Amount: asset.New(1000, asset.DefaultUnit),
	}
	sig := spender.Private.Sign(chain.SigningBytes(tx))
	tx.SigPairs = []txscript.SigPair{{PubKey: spender.Public, Sig: sig}}

	m := New(bc, mp, Options{
		Key:           minterKey,
		RewardAddr:    [20]byte{3},
		RewardAmount:  asset.New(1, asset.DefaultUnit),
		BlockInterval: time.Hour,
	})

	require.NoError(t, m.PushTx(tx))
	require.NoError(t, m.ForceProduceBlock())

	assert.Equal(t, 0, mp.Len())
	assert.Equal(t, asset.New(1000, asset.DefaultUnit), m.GetAddrInfo([20]byte{8}).Balance)
}

func TestStartStopDoesNotRaceOrDeadlock(t *testing.T) {
	bc, minterKey, _ := openTestChain(t)
	mp, err := NewMempool(bc)
	require.NoError(t, err)

	m := New(bc, mp, Options{
		Key:           minterKey,
		RewardAddr:    [20]byte{9},
		RewardAmount:  asset.New(1, asset.DefaultUnit),
		BlockInterval: 10 * time.Millisecond,
	})
	m.Start()
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	height, ok := bc.GetChainHeight()
	require.True(t, ok)
	assert.Greater(t, height, uint64(0))
}
