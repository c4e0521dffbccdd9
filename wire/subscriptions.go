package wire

import (
	"sync"

	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/internal/log"
)

var subLogger = log.NewModuleLogger(log.ModuleSub)

// MaxQueuedBroadcast bounds each subscriber's outbound block queue,
// mirroring klaytn's maxQueuedProps bound on a peer's block-propagation
// channel (node/cn/peer.go).
const MaxQueuedBroadcast = 32

// Subscriptions is the peer-address -> outbound-queue map backing
// spec.md §4.7: one bounded channel per subscribed peer, filled by
// Broadcast with a non-blocking try-send that silently drops the block
// if the peer's queue is full, generalizing
// node/cn/peer.go's AsyncSendNewBlock.
type Subscriptions struct {
	mu     sync.Mutex
	queues map[string]chan *chain.Block
}

// NewSubscriptions returns an empty subscription pool.
func NewSubscriptions() *Subscriptions {
	return &Subscriptions{queues: make(map[string]chan *chain.Block)}
}

// Insert registers peerAddr and returns the channel its connection
// handler should drain to forward blocks to the client.
func (s *Subscriptions) Insert(peerAddr string) <-chan *chain.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan *chain.Block, MaxQueuedBroadcast)
	s.queues[peerAddr] = ch
	return ch
}

// Remove unregisters peerAddr, closing its queue.
func (s *Subscriptions) Remove(peerAddr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.queues[peerAddr]; ok {
		close(ch)
		delete(s.queues, peerAddr)
	}
}

// Broadcast offers blk to every subscribed peer's queue, dropping it for
// any peer whose queue is currently full.
func (s *Subscriptions) Broadcast(blk *chain.Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, ch := range s.queues {
		select {
		case ch <- blk:
		default:
			subLogger.Debug("dropping block broadcast", "peer", addr, "height", blk.Header.Height)
		}
	}
}

// Len reports the number of currently subscribed peers.
func (s *Subscriptions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}
