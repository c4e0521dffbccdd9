package ledger

import "sync"

// replayWindow tracks which transaction hashes appeared in the most
// recent windowSize blocks, giving verifyTx's uniqueness check (spec.md
// §4.4 step 4) an O(1) membership test without rescanning the block log.
// A generic item-count LRU (github.com/hashicorp/golang-lru, used by the
// mempool's own replay cache) does not fit here: eviction must track
// block height, not insertion order, so a tx from a block that is still
// within the window is never evicted early just because other
// transactions were recorded after it.
type replayWindow struct {
	mu         sync.Mutex
	windowSize uint64
	byHeight   map[uint64][][32]byte
	seen       map[[32]byte]struct{}
}

func newReplayWindow(size uint64) *replayWindow {
	return &replayWindow{
		windowSize: size,
		byHeight:   make(map[uint64][][32]byte),
		seen:       make(map[[32]byte]struct{}),
	}
}

// Contains reports whether hash was recorded by a block still inside the
// window.
func (w *replayWindow) Contains(hash [32]byte) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.seen[hash]
	return ok
}

// Record registers the transaction hashes included at height, evicting
// whatever block fell out of the trailing window.
func (w *replayWindow) Record(height uint64, hashes [][32]byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.byHeight[height] = hashes
	for _, h := range hashes {
		w.seen[h] = struct{}{}
	}
	if height < w.windowSize {
		return
	}
	evict := height - w.windowSize
	if old, ok := w.byHeight[evict]; ok {
		for _, h := range old {
			delete(w.seen, h)
		}
		delete(w.byHeight, evict)
	}
}
