// Package minter implements the transaction mempool and the block
// producer state machine (spec.md §4.5, §4.6).
package minter

import (
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/internal/log"
	"github.com/klaytn/graelnode/internal/xerr"
	"github.com/klaytn/graelnode/ledger"
)

var mempoolLogger = log.NewModuleLogger(log.ModuleMempool)

// SeenCacheSize bounds the mempool's own recently-seen-hash cache, which
// rejects resubmission of a transaction still pending or only just
// removed, independent of the chain's own replay window (spec.md §4.4
// step 4 operates over confirmed blocks; this operates over the pool).
const SeenCacheSize = 4096

// Mempool orders pending transactions by (fee desc, timestamp asc) for
// block production, de-duplicating with an LRU-backed seen-tx cache.
// Grounded on klaytn's work/worker.go tx-channel/ordering pattern and
// common/cache.go's github.com/hashicorp/golang-lru usage.
type Mempool struct {
	mu      sync.Mutex
	bc      *ledger.Blockchain
	pending map[[32]byte]chain.TxVariant
	seen    *lru.Cache
}

// NewMempool constructs an empty mempool backed by bc for validation.
func NewMempool(bc *ledger.Blockchain) (*Mempool, error) {
	cache, err := lru.New(SeenCacheSize)
	if err != nil {
		return nil, err
	}
	return &Mempool{
		bc:      bc,
		pending: make(map[[32]byte]chain.TxVariant),
		seen:    cache,
	}, nil
}

// Push validates tx against the current chain state and, if accepted,
// admits it to the pool.
func (mp *Mempool) Push(tx chain.TxVariant) error {
	hash := chain.Hash(tx)

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, pending := mp.pending[hash]; pending {
		return xerr.TxValidation("AlreadyPending")
	}
	if mp.seen.Contains(hash) {
		return xerr.TxValidation("DuplicateTransaction")
	}
	if err := mp.bc.VerifyTx(tx); err != nil {
		return err
	}

	mp.pending[hash] = tx
	mp.seen.Add(hash, struct{}{})
	mempoolLogger.Debug("admitted transaction", "hash", hash, "kind", tx.Kind())
	return nil
}

// DrainForBlock returns up to maxTxs pending transactions ordered by fee
// descending, then timestamp ascending (spec.md §4.5), removing them
// from the pool (spec.md §4.5 drain_for_block: "removed from the
// pool"). A caller that fails to insert the resulting block must call
// Requeue to put them back (spec.md §4.6 step 6); a caller that
// succeeds calls RemoveIncluded, which is then a no-op for these
// hashes but still the documented op for any tx the produced block
// carries that didn't originate from a Drain.
func (mp *Mempool) DrainForBlock(maxTxs int) []chain.TxVariant {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	txs := make([]chain.TxVariant, 0, len(mp.pending))
	for _, tx := range mp.pending {
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool {
		fi, fj := txs[i].Base().Fee, txs[j].Base().Fee
		if c := fi.Cmp(fj); c != 0 {
			return c > 0
		}
		return txs[i].Base().Timestamp < txs[j].Base().Timestamp
	})
	if maxTxs > 0 && len(txs) > maxTxs {
		txs = txs[:maxTxs]
	}
	for _, tx := range txs {
		delete(mp.pending, chain.Hash(tx))
	}
	return txs
}

// RemoveIncluded drops every tx in txs from the pending set, called once
// the block carrying them has been inserted.
func (mp *Mempool) RemoveIncluded(txs []chain.TxVariant) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for _, tx := range txs {
		delete(mp.pending, chain.Hash(tx))
	}
}

// Requeue reinserts previously drained transactions into the pending
// set without re-running verification — they were already verified
// before being drained, and nothing else has touched chain state since
// (the insertion that would have is exactly what failed). Used when a
// produced block fails InsertBlock (spec.md §4.6 step 6: "put drained
// transactions back, remain in Idle").
func (mp *Mempool) Requeue(txs []chain.TxVariant) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	for _, tx := range txs {
		mp.pending[chain.Hash(tx)] = tx
	}
}

// Len reports the number of pending transactions.
func (mp *Mempool) Len() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.pending)
}
