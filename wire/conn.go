package wire

import (
	"sync"
	"time"

	"github.com/clevergo/websocket"

	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/internal/log"
	"github.com/klaytn/graelnode/internal/xerr"
	"github.com/klaytn/graelnode/ledger"
	"github.com/klaytn/graelnode/minter"
)

var connLogger = log.NewModuleLogger(log.ModuleConn)

const (
	// heartbeatInterval is spec.md §4.9's heartbeat tick: every interval,
	// a connection that already owed a pong from the last tick is closed;
	// otherwise needs_pong is set and a Ping goes out. Two missed ticks
	// close the connection, giving the "no inbound traffic for 40s is
	// closed" property of spec.md §8 without a separate read deadline.
	heartbeatInterval = 20 * time.Second
	writeWait         = 10 * time.Second

	// sendQueueSize bounds the writer's outbound frame queue; while it is
	// full, ordinary responses to a slow client are dropped (trySend) and
	// GetBlockRange streaming waits for space (sendBlocking), rather than
	// backing up memory, mirroring node/cn/peer.go's bounded broadcast
	// channels.
	sendQueueSize = 64

	// blockRangeChunkLimit is the largest number of blocks a single
	// GetBlockRange request may ask for; a larger range is rejected with
	// InvalidRequest before any block is streamed, so a slow reader can't
	// pin an unbounded amount of server memory.
	blockRangeChunkLimit = 4096
)

// Handler wires a Conn to the node's core: the chain for reads, the
// minter for transaction submission, and the subscription pool for
// block pushes.
type Handler struct {
	Chain *ledger.Blockchain
	Mint  *minter.Minter
	Subs  *Subscriptions
	Unit  string
}

// Conn is one accepted WebSocket connection: a reader goroutine
// dispatching requests (spawning a request-scoped goroutine for
// streaming GetBlockRange), a writer goroutine draining the outbound
// queue and the subscription channel, and a heartbeat goroutine —
// generalizing node/cn/peer.go's broadcast/read-loop/handshake-timeout
// split to this protocol's single connection (spec.md §4.9).
type Conn struct {
	ws       *websocket.Conn
	peerAddr string
	handler  *Handler

	send      chan []byte
	subCh     <-chan *chain.Block
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup

	// mu guards the connection state named in spec.md §3: the optional
	// block filter and the heartbeat's needs-pong flag.
	mu        sync.Mutex
	filter    map[[20]byte]struct{} // nil: unfiltered, subscribers get full blocks
	peerType  PeerType
	needsPong bool
}

// Serve takes ownership of ws and blocks until the connection closes.
func Serve(ws *websocket.Conn, peerAddr string, h *Handler) {
	c := &Conn{
		ws:       ws,
		peerAddr: peerAddr,
		handler:  h,
		send:     make(chan []byte, sendQueueSize),
		subCh:    h.Subs.Insert(peerAddr),
		done:     make(chan struct{}),
	}
	defer h.Subs.Remove(peerAddr)

	c.wg.Add(3)
	go c.readLoop()
	go c.writeLoop()
	go c.heartbeatLoop()
	c.wg.Wait()
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

func (c *Conn) readLoop() {
	defer c.wg.Done()
	defer c.close()

	c.ws.SetPongHandler(func(string) error {
		c.clearNeedsPong()
		return nil
	})

	for {
		msgType, msg, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		// Any inbound frame, not only a pong, counts as liveness
		// (spec.md §4.9: "any incoming frame clears needs_pong").
		c.clearNeedsPong()

		if msgType != websocket.BinaryMessage {
			c.trySend(EncodeFrame(ReservedRequestID, TagRespError, EncodeError(xerr.KindInvalidRequest, "text frames are not accepted")))
			return
		}

		req, err := DecodeFrame(msg)
		if err != nil {
			kind := xerr.KindIO
			if xe, ok := xerr.As(err); ok {
				kind = xe.Kind
			}
			c.trySend(EncodeFrame(ReservedRequestID, TagRespError, EncodeError(kind, err.Error())))
			if kind != xerr.KindBytesRemaining {
				return
			}
			continue
		}

		if req.Tag == TagKeepAlive {
			c.trySend(EncodeKeepAlive(req.ID))
			continue
		}
		if req.Tag == TagGetBlockRange {
			c.wg.Add(1)
			go c.serveBlockRange(req)
			continue
		}
		c.dispatch(req)
	}
}

func (c *Conn) clearNeedsPong() {
	c.mu.Lock()
	c.needsPong = false
	c.mu.Unlock()
}

func (c *Conn) dispatch(req *Request) {
	resp, err := c.handle(req)
	if err != nil {
		kind := xerr.KindInvalidRequest
		if xe, ok := xerr.As(err); ok {
			kind = xe.Kind
		}
		c.trySend(EncodeFrame(req.ID, TagRespError, EncodeError(kind, err.Error())))
		return
	}
	c.trySend(resp)
}

func (c *Conn) handle(req *Request) ([]byte, error) {
	switch req.Tag {
	case TagGetProperties:
		props, err := c.handler.Chain.GetProperties()
		if err != nil {
			return nil, err
		}
		return EncodeFrame(req.ID, TagRespProperties, encodeProperties(props)), nil

	case TagGetAddressInfo:
		addr, err := DecodeAddressRequest(req.Body)
		if err != nil {
			return nil, xerr.Wrap(xerr.KindIO, err, "address")
		}
		info := c.handler.Chain.GetAddressInfo(addr)
		return EncodeFrame(req.ID, TagRespBalance, EncodeAddressInfo(info.Balance, info.NetFee, info.Script)), nil

	case TagGetTotalFee:
		addr, err := DecodeAddressRequest(req.Body)
		if err != nil {
			return nil, xerr.Wrap(xerr.KindIO, err, "address")
		}
		info := c.handler.Chain.GetAddressInfo(addr)
		return EncodeFrame(req.ID, TagRespTotalFee, EncodeTotalFee(info.NetFee)), nil

	case TagHandshake:
		pt, err := DecodeHandshake(req.Body)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.peerType = pt
		c.mu.Unlock()
		connLogger.Debug("handshake", "peer", c.peerAddr, "peer_type", pt)
		return EncodeFrame(req.ID, TagRespOk, nil), nil

	case TagSetBlockFilter:
		addrs, err := DecodeAddressSet(req.Body)
		if err != nil {
			return nil, xerr.Wrap(xerr.KindIO, err, "block filter")
		}
		if len(addrs) > MaxBlockFilterSize {
			return nil, xerr.New(xerr.KindInvalidRequest, "block filter exceeds 16 addresses")
		}
		c.mu.Lock()
		c.filter = addrs
		c.mu.Unlock()
		return EncodeFrame(req.ID, TagRespOk, nil), nil

	case TagClearBlockFilter:
		c.mu.Lock()
		c.filter = nil
		c.mu.Unlock()
		return EncodeFrame(req.ID, TagRespOk, nil), nil

	case TagGetBlock:
		height, err := DecodeHeightRequest(req.Body)
		if err != nil {
			return nil, xerr.Wrap(xerr.KindIO, err, "height")
		}
		blk, err := c.handler.Chain.GetBlock(height)
		if err != nil {
			return nil, err
		}
		return EncodeFrame(req.ID, TagRespBlock, EncodeBlock(blk)), nil

	case TagGetFilteredBlock:
		height, addrs, err := DecodeFilteredBlockRequest(req.Body)
		if err != nil {
			return nil, xerr.Wrap(xerr.KindIO, err, "filtered block request")
		}
		blk, err := c.handler.Chain.GetFilteredBlock(height, addrs)
		if err != nil {
			return nil, err
		}
		return EncodeFrame(req.ID, TagRespBlock, EncodeBlock(blk)), nil

	case TagBroadcastTx:
		tx, err := DecodeTxBody(req.Body, c.handler.Unit)
		if err != nil {
			return nil, xerr.Wrap(xerr.KindIO, err, "transaction")
		}
		if err := c.handler.Mint.PushTx(tx); err != nil {
			return nil, err
		}
		return EncodeFrame(req.ID, TagRespOk, nil), nil

	case TagSubscribe, TagUnsubscribe:
		// Subscription is connection-scoped and already active from
		// Serve's Subs.Insert; these tags only exist so a client can
		// acknowledge intent explicitly.
		return EncodeFrame(req.ID, TagRespOk, nil), nil

	default:
		return nil, xerr.New(xerr.KindInvalidRequest, "unknown request tag")
	}
}

// serveBlockRange streams one TagRespBlockRangeItem frame per block in
// [start, end], followed by TagRespBlockRangeEnd, applying backpressure
// through trySend's queue: a client that stops reading stalls this
// goroutine (bounded by sendQueueSize), it is never force-fed.
func (c *Conn) serveBlockRange(req *Request) {
	defer c.wg.Done()

	start, end, err := DecodeBlockRangeRequest(req.Body)
	if err != nil {
		c.trySend(EncodeFrame(req.ID, TagRespError, EncodeError(xerr.KindIO, "block range request")))
		return
	}
	if end < start || end-start+1 > blockRangeChunkLimit {
		c.trySend(EncodeFrame(req.ID, TagRespError, EncodeError(xerr.KindInvalidRequest, "range too large")))
		return
	}

	for h := start; h <= end; h++ {
		blk, err := c.handler.Chain.GetBlock(h)
		if err != nil {
			c.trySend(EncodeFrame(req.ID, TagRespError, EncodeError(xerr.KindInvalidHeight, "height not in chain")))
			return
		}
		select {
		case <-c.done:
			return
		default:
		}
		if !c.sendBlocking(EncodeFrame(req.ID, TagRespBlockRangeItem, EncodeBlock(blk))) {
			return
		}
	}
	c.trySend(EncodeFrame(req.ID, TagRespBlockRangeEnd, nil))
}

// trySend is the non-blocking try-send other response paths use: a
// client whose socket write queue is already full gets the frame
// dropped rather than blocking the reader.
func (c *Conn) trySend(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		connLogger.Debug("dropping response, send queue full", "peer", c.peerAddr)
	}
}

// sendBlocking is GetBlockRange's backpressured counterpart to trySend:
// it blocks until the writer drains a slot or the connection closes,
// reporting which via its return value.
func (c *Conn) sendBlocking(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	}
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()
	defer c.close()

	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case blk, ok := <-c.subCh:
			if !ok {
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			frame := EncodeFrame(ReservedRequestID, TagRespBlock, EncodeBlock(c.applyFilter(blk)))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// applyFilter narrows blk to the connection's block filter, if one is
// set, before it is pushed to the subscriber (spec.md §3, §4.7): an
// unfiltered connection gets the full block.
func (c *Conn) applyFilter(blk *chain.Block) *chain.Block {
	c.mu.Lock()
	f := c.filter
	c.mu.Unlock()
	if f == nil {
		return blk
	}
	return blk.KeepOnly(f)
}

// heartbeatLoop implements spec.md §4.9's liveness check: every
// heartbeatInterval, a connection that still owes a pong from the
// previous tick is closed; otherwise needs_pong is set and a Ping is
// sent. Any inbound frame (readLoop) or Pong (the ws PongHandler)
// clears needs_pong, so two consecutive silent intervals, 40s total,
// close the connection (spec.md §8).
func (c *Conn) heartbeatLoop() {
	defer c.wg.Done()
	defer c.close()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			owed := c.needsPong
			c.needsPong = true
			c.mu.Unlock()
			if owed {
				connLogger.Debug("closing unresponsive connection", "peer", c.peerAddr)
				return
			}
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func encodeProperties(p ledger.Properties) []byte {
	b := chain.NewBuffer(64)
	b.PushU64(p.Height)
	b.PushAsset(p.Supply)
	b.PushScript(p.Owner.Script)
	b.PushPubKey(p.Owner.Minter)
	b.PushU32(uint32(len(p.Owner.WalletKeys)))
	for _, k := range p.Owner.WalletKeys {
		b.PushPubKey(k)
	}
	b.PushU32(uint32(p.Owner.Threshold))
	return b.Bytes()
}
