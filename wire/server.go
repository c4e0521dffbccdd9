package wire

import (
	"net/http"

	"github.com/clevergo/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/klaytn/graelnode/internal/log"
)

var serverLogger = log.NewModuleLogger(log.ModuleWire)

// upgrader performs the HTTP -> WebSocket upgrade for every accepted
// connection. CheckOrigin is permissive: this node serves a public,
// read-mostly API with no browser-cookie session to protect, so there
// is no cross-origin state worth restricting.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the single-endpoint WebSocket listener: spec.md §4.9's wire
// protocol is carried over one route, so the router's only job is the
// upgrade handshake itself. Bound with julienschmidt/httprouter because
// that's the teacher's declared router dependency; the corpus carries no
// retrieved usage of either clevergo/websocket or httprouter, so this
// wiring follows the well-documented gorilla-compatible Upgrader/Conn API
// convention rather than a directly grounded example (see DESIGN.md).
type Server struct {
	handler *Handler
	router  *httprouter.Router
}

// NewServer builds a Server that dispatches accepted connections to h.
func NewServer(h *Handler) *Server {
	s := &Server{handler: h, router: httprouter.New()}
	s.router.GET("/ws", s.handleUpgrade)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		serverLogger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	serverLogger.Info("peer connected", "remote", r.RemoteAddr)
	Serve(ws, r.RemoteAddr, s.handler)
	serverLogger.Info("peer disconnected", "remote", r.RemoteAddr)
}

// ListenAndServe starts the node's WebSocket endpoint on addr and blocks,
// mirroring node/cn's http.Server-per-endpoint pattern generalized to
// this node's single /ws route.
func ListenAndServe(addr string, h *Handler) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: NewServer(h),
	}
	serverLogger.Info("wire server listening", "addr", addr)
	return srv.ListenAndServe()
}
