package ledger

import (
	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/ledger/index"
	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/crypto"
	"github.com/klaytn/graelnode/pkg/script"
)

// GenesisBlockInfo is returned by CreateGenesisBlock: the owner wallet's
// spendability script together with the generated key material a test or
// first-run admin needs to produce the first MintTx (spec.md §6, owner
// wallet is a threshold multisig over WalletKeys).
type GenesisBlockInfo struct {
	Script     script.Script
	WalletKeys []crypto.KeyPair
	MinterKey  crypto.KeyPair
	Threshold  int
}

// CreateGenesisBlock builds and persists the height-0 block: no
// transactions, signed by minterKey, with the chain properties' owner
// snapshot set to an unspendable script (OP_FALSE, spec.md §3 "this
// wallet cannot be spent from directly") backed by walletCount freshly
// generated multisig keys requiring threshold signatures to authorize a
// MintTx (spec.md §4.4 step 7). Fails if the chain is not empty.
func (bc *Blockchain) CreateGenesisBlock(minterKey crypto.KeyPair, walletCount, threshold int) (*GenesisBlockInfo, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if !bc.isEmptyLocked() {
		return nil, errNotEmpty
	}

	wallet := make([]crypto.KeyPair, walletCount)
	walletPub := make([]crypto.PublicKey, walletCount)
	for i := range wallet {
		kp, err := crypto.Gen()
		if err != nil {
			return nil, err
		}
		wallet[i] = kp
		walletPub[i] = kp.Public
	}

	genesis := &chain.Block{
		Header: chain.Header{
			Height:       0,
			Timestamp:    0,
			PreviousHash: [32]byte{},
			TxMerkleRoot: chain.TxMerkleRoot(nil),
		},
	}
	genesis.Sign(minterKey)

	offset, err := bc.log.Append(genesis)
	if err != nil {
		return nil, err
	}

	ownerScript := script.PushFalse()
	owner := index.Owner{
		Script:     ownerScript,
		Minter:     minterKey.Public,
		WalletKeys: walletPub,
		Threshold:  threshold,
	}
	if err := bc.idx.WriteOffset(0, offset); err != nil {
		return nil, err
	}
	if err := bc.idx.WriteHeight(0); err != nil {
		return nil, err
	}
	if err := bc.idx.WriteSupply(asset.New(0, bc.unit)); err != nil {
		return nil, err
	}
	if err := bc.idx.WriteOwner(owner); err != nil {
		return nil, err
	}
	if err := bc.idx.WriteStatus(index.StatusComplete); err != nil {
		return nil, err
	}

	bc.head = genesis
	return &GenesisBlockInfo{Script: ownerScript, WalletKeys: wallet, MinterKey: minterKey, Threshold: threshold}, nil
}
