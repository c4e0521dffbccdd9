// Package ledger implements the Blockchain facade (spec.md §4.4): the
// single linear, append-only chain built from ledger/blocklog (the block
// log) and ledger/index (the secondary index), with the reader/writer
// lock model of spec.md §5. Grounded on klaytn's blockchain.BlockChain
// facade role (owns db + head pointer, GetBlock/InsertChain-style
// operations), generalized down to a single chain with no fork choice
// (explicit Non-goal).
package ledger

import (
	"sync"

	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/internal/log"
	"github.com/klaytn/graelnode/internal/xerr"
	"github.com/klaytn/graelnode/ledger/blocklog"
	"github.com/klaytn/graelnode/ledger/index"
	"github.com/klaytn/graelnode/pkg/asset"
	"github.com/klaytn/graelnode/pkg/script"
	"github.com/klaytn/graelnode/storage/kv"
)

var logger = log.NewModuleLogger(log.ModuleBlockchain)

var errNotEmpty = xerr.New(xerr.KindInvalidRequest, "chain is not empty")

// Blockchain is the facade every other component (mempool, minter, wire
// handlers) talks to. All mutation goes through InsertBlock and
// CreateGenesisBlock, both taking the write lock; reads take the read
// lock, so a reader never observes a partially-applied block (spec.md
// §5).
type Blockchain struct {
	mu     sync.RWMutex
	log    *blocklog.Log
	idx    *index.Index
	unit   string
	minFee asset.Asset
	replay *replayWindow
	head   *chain.Block
}

// Open opens (or creates) the block log and index at the paths in opts,
// replaying the tail of the block log into the replay window so
// VerifyTx's uniqueness check is warm immediately. If the index's
// reindex status is not Complete, the caller should invoke Reindex
// before serving traffic.
func Open(opts Options) (*Blockchain, error) {
	l, err := blocklog.Open(opts.BlockLogPath, opts.Unit, opts.AutoTrimBlockLog)
	if err != nil {
		return nil, xerr.Io(err)
	}
	store, err := kv.OpenBadger(opts.IndexDir)
	if err != nil {
		l.Close()
		return nil, xerr.Io(err)
	}
	idx := index.Open(store, opts.Unit)

	bc := &Blockchain{
		log:    l,
		idx:    idx,
		unit:   opts.Unit,
		minFee: opts.MinFee,
		replay: newReplayWindow(opts.replayWindow()),
	}

	if height, ok := idx.ReadHeight(); ok {
		if off, ok := idx.ReadOffset(height); ok {
			head, err := l.ReadAt(off)
			if err != nil {
				return nil, xerr.Io(err)
			}
			bc.head = head
		}
	}

	if err := bc.warmReplayWindow(); err != nil {
		return nil, err
	}
	return bc, nil
}

// warmReplayWindow rescans the block log to repopulate the in-memory
// replay window on startup; cost is bounded by log length, not window
// size, and is paid once at Open.
func (bc *Blockchain) warmReplayWindow() error {
	return bc.log.Scan(func(f blocklog.Frame) error {
		bc.replay.Record(f.Block.Header.Height, txHashes(f.Block))
		return nil
	})
}

func txHashes(blk *chain.Block) [][32]byte {
	hashes := make([][32]byte, len(blk.Transactions))
	for i, tx := range blk.Transactions {
		hashes[i] = chain.Hash(tx)
	}
	return hashes
}

// Close releases the block log and index.
func (bc *Blockchain) Close() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	logErr := bc.log.Close()
	idxErr := bc.idx.Close()
	if logErr != nil {
		return logErr
	}
	return idxErr
}

// IsEmpty reports whether the chain has not yet been initialized with a
// genesis block.
func (bc *Blockchain) IsEmpty() bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.isEmptyLocked()
}

func (bc *Blockchain) isEmptyLocked() bool {
	_, ok := bc.idx.ReadHeight()
	return !ok
}

// GetChainHeight returns the current chain height.
func (bc *Blockchain) GetChainHeight() (uint64, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.idx.ReadHeight()
}

// GetChainHead returns the most recently inserted block.
func (bc *Blockchain) GetChainHead() (*chain.Block, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.head == nil {
		return nil, false
	}
	return bc.head, true
}

// GetBlock returns the block at height.
func (bc *Blockchain) GetBlock(height uint64) (*chain.Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.getBlockLocked(height)
}

func (bc *Blockchain) getBlockLocked(height uint64) (*chain.Block, error) {
	off, ok := bc.idx.ReadOffset(height)
	if !ok {
		return nil, xerr.New(xerr.KindInvalidHeight, "height not in chain")
	}
	blk, err := bc.log.ReadAt(off)
	if err != nil {
		return nil, xerr.Io(err)
	}
	return blk, nil
}

// GetFilteredBlock returns the block at height retaining only
// transactions that touch an address in addrs, header (and Merkle root)
// unchanged — the view a subscriber watching addrs is given, per
// spec.md §4.4 get_filtered_block.
func (bc *Blockchain) GetFilteredBlock(height uint64, addrs map[[20]byte]struct{}) (*chain.Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	blk, err := bc.getBlockLocked(height)
	if err != nil {
		return nil, err
	}
	return blk.KeepOnly(addrs), nil
}

// Properties is the chain properties snapshot (spec.md §3).
type Properties struct {
	Height uint64
	Supply asset.Asset
	Owner  index.Owner
}

// NeedsReindex reports whether the index's reindex status is something
// other than Complete, per spec.md §6: the process entry point checks
// this at startup and refuses to serve traffic until Reindex is run.
func (bc *Blockchain) NeedsReindex() bool {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.idx.ReadStatus() != index.StatusComplete
}

// GetProperties returns the current chain properties snapshot.
func (bc *Blockchain) GetProperties() (Properties, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	height, _ := bc.idx.ReadHeight()
	owner, ok := bc.idx.ReadOwner()
	if !ok {
		return Properties{}, xerr.New(xerr.KindInvalidRequest, "chain has no owner snapshot")
	}
	return Properties{Height: height, Supply: bc.idx.ReadSupply(), Owner: owner}, nil
}

// AddressInfo is the balance snapshot spec.md §3 calls "balance
// snapshot", extended with the fee-display fields spec.md §4.4's
// get_address_info names: {balance, net_fee, script?}. Script-hash
// addressing means the index only ever recovers the original script
// bytes for the one address the chain itself remembers — the owner
// wallet's — so Script is only ever populated for that address; NetFee
// falls back to the chain's fee floor for every other address, since no
// stored script is available to evaluate a schedule against.
type AddressInfo struct {
	Address [20]byte
	Balance asset.Asset
	NetFee  asset.Asset
	Script  script.Script
}

// GetAddressInfo returns addr's current balance, fee schedule and
// (where known) spending script.
func (bc *Blockchain) GetAddressInfo(addr [20]byte) AddressInfo {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	info := AddressInfo{Address: addr, Balance: bc.idx.ReadBalance(addr), NetFee: bc.minFee}
	owner, ok := bc.idx.ReadOwner()
	if ok && owner.Script.Hash() == addr {
		info.Script = owner.Script
		if result := script.Eval(owner.Script, script.Context{RequiredFee: bc.minFee, SigsVerified: owner.Threshold}); result.Pass {
			info.NetFee = result.Fee
		}
	}
	return info
}

// InsertBlock validates blk's linkage and every transaction it carries,
// then appends it to the block log and updates the index under the
// write lock, so readers never observe a partially-applied block
// (spec.md §5).
func (bc *Blockchain) InsertBlock(blk *chain.Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.head == nil {
		return xerr.New(xerr.KindInvalidRequest, "chain has no genesis block")
	}
	if blk.Header.Height != bc.head.Header.Height+1 {
		return xerr.New(xerr.KindInvalidHeight, "height is not chain_head+1")
	}
	if blk.Header.PreviousHash != bc.head.Header.Hash() {
		return xerr.New(xerr.KindInvalidRequest, "previous_hash does not match chain head")
	}

	owner, ok := bc.idx.ReadOwner()
	if !ok {
		return xerr.New(xerr.KindInvalidRequest, "chain has no owner snapshot")
	}
	if !blk.VerifySignature(owner.Minter) {
		return xerr.New(xerr.KindInvalidRequest, "block signature does not match minter key")
	}

	supply := bc.idx.ReadSupply()
	seenInBlock := make(map[[32]byte]struct{}, len(blk.Transactions))
	for i, tx := range blk.Transactions {
		hash := chain.Hash(tx)
		if _, dup := seenInBlock[hash]; dup {
			return xerr.TxValidation("DuplicateTransaction")
		}
		seenInBlock[hash] = struct{}{}

		isLast := i == len(blk.Transactions)-1
		if err := bc.verifyTxLocked(tx, owner, supply, isLast && isReward(tx)); err != nil {
			return err
		}
		var err error
		supply, err = applySupply(supply, tx)
		if err != nil {
			return err
		}
	}

	offset, err := bc.log.Append(blk)
	if err != nil {
		return xerr.Io(err)
	}

	for _, tx := range blk.Transactions {
		if err := bc.applyBalances(tx); err != nil {
			return err
		}
	}
	if err := bc.idx.WriteOffset(blk.Header.Height, offset); err != nil {
		return xerr.Io(err)
	}
	if err := bc.idx.WriteHeight(blk.Header.Height); err != nil {
		return xerr.Io(err)
	}
	if err := bc.idx.WriteSupply(supply); err != nil {
		return xerr.Io(err)
	}
	if o, changed := ownerAfter(owner, blk.Transactions); changed {
		if err := bc.idx.WriteOwner(o); err != nil {
			return xerr.Io(err)
		}
	}

	bc.replay.Record(blk.Header.Height, txHashes(blk))
	bc.head = blk
	logger.Info("inserted block", "height", blk.Header.Height, "txs", len(blk.Transactions))
	return nil
}

func isReward(tx chain.TxVariant) bool { _, ok := tx.(*chain.RewardTx); return ok }
