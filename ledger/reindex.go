package ledger

import (
	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/internal/xerr"
	"github.com/klaytn/graelnode/ledger/blocklog"
	"github.com/klaytn/graelnode/ledger/index"
	"github.com/klaytn/graelnode/pkg/asset"
)

// Reindex rebuilds the secondary index from the block log alone,
// following spec.md §4.3's four-step procedure: mark the index Partial,
// replay every block in order rebuilding height->offset, balances,
// supply and the owner snapshot, set the chain head to the last block
// scanned, then mark the index Complete. The caller is responsible for
// starting from a cleared index store (e.g. after deleting and
// recreating the index directory) — Reindex does not itself delete
// stale entries from a prior index generation.
func (bc *Blockchain) Reindex(genesisOwner index.Owner) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if err := bc.idx.WriteStatus(index.StatusPartial); err != nil {
		return xerr.Io(err)
	}

	// Open already recorded every logged transaction in the replay window;
	// start it empty so the scan below does not reject them as duplicates.
	bc.replay = newReplayWindow(bc.replay.windowSize)

	owner := genesisOwner
	supply := asset.New(0, bc.unit)
	var head *chain.Block
	var lastHeight uint64
	var sawAny bool

	err := bc.log.Scan(func(f blocklog.Frame) error {
		sawAny = true
		lastHeight = f.Block.Header.Height

		for i, tx := range f.Block.Transactions {
			isLast := i == len(f.Block.Transactions)-1
			if err := bc.verifyTxLocked(tx, owner, supply, isLast && isReward(tx)); err != nil {
				return err
			}
			var err error
			supply, err = applySupply(supply, tx)
			if err != nil {
				return err
			}
		}
		for _, tx := range f.Block.Transactions {
			if err := bc.applyBalances(tx); err != nil {
				return err
			}
		}
		if o, changed := ownerAfter(owner, f.Block.Transactions); changed {
			owner = o
		}
		if err := bc.idx.WriteOffset(f.Block.Header.Height, f.Offset); err != nil {
			return xerr.Io(err)
		}
		bc.replay.Record(f.Block.Header.Height, txHashes(f.Block))
		head = f.Block
		return nil
	})
	if err != nil {
		return err
	}
	if !sawAny {
		return xerr.New(xerr.KindInvalidRequest, "reindex: block log is empty")
	}

	if err := bc.idx.WriteHeight(lastHeight); err != nil {
		return xerr.Io(err)
	}
	if err := bc.idx.WriteSupply(supply); err != nil {
		return xerr.Io(err)
	}
	if err := bc.idx.WriteOwner(owner); err != nil {
		return xerr.Io(err)
	}
	if err := bc.idx.WriteStatus(index.StatusComplete); err != nil {
		return xerr.Io(err)
	}
	bc.head = head
	logger.Info("reindex complete", "height", lastHeight)
	return nil
}
