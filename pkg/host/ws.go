package host

import (
	"encoding/json"
	"net/http"
	"time"

	"wiki-relay/pkg/filter"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 64 * 1024
)

// FilterCommand is the inbound websocket frame. Endpoint falls back to the handler default.
type FilterCommand struct {
	Endpoint  string   `json:"endpoint,omitempty"`
	Codes     []string `json:"codes"`
	Languages []string `json:"languages"`
	Types     []string `json:"types"`
}

type errorFrame struct {
	Error string `json:"error"`
}

// WSHandler serves host ports over websocket: inbound frames update filters, outbound
// frames carry raw event JSON in arrival order.
type WSHandler struct {
	host            Host
	defaultEndpoint string
	logger          *log.Entry
	upgrader        websocket.Upgrader
}

func NewWSHandler(h Host, defaultEndpoint string, logger *log.Entry) *WSHandler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &WSHandler{
		host:            h,
		defaultEndpoint: defaultEndpoint,
		logger:          logger.WithField("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// the visualizer is served from any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) Router() chi.Router {
	rtr := chi.NewRouter()
	rtr.Get("/", h.connman)
	return rtr
}

func (h *WSHandler) connman(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	port, err := h.host.Attach()
	if err != nil {
		h.logger.WithError(err).Warn("rejecting consumer")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()), time.Now().Add(writeWait))
		return
	}
	lgr := h.logger.WithFields(log.Fields{"port": port.ID(), "remote": r.RemoteAddr})
	lgr.Info("consumer connected")

	replies := make(chan errorFrame, 4)
	writerDone := make(chan struct{})
	go h.writer(conn, port, replies, writerDone, lgr)

	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd FilterCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				lgr.WithError(err).Warn("consumer read failed")
			}
			break
		}
		endpoint := cmd.Endpoint
		if endpoint == "" {
			endpoint = h.defaultEndpoint
		}
		fs := filter.New(cmd.Codes, cmd.Languages, cmd.Types)
		if err := port.UpdateFilters(endpoint, fs); err != nil {
			lgr.WithError(err).Warn("rejected filter command")
			select {
			case replies <- errorFrame{Error: err.Error()}:
			default:
			}
			continue
		}
		lgr.WithField("filters", fs.String()).Debug("filters updated")
	}

	// closing the port closes Events, which stops the writer
	port.Close()
	<-writerDone
	lgr.WithField("dropped", port.Dropped()).Info("consumer disconnected")
}

// writer is the only goroutine writing to conn.
func (h *WSHandler) writer(conn *websocket.Conn, port Port, replies <-chan errorFrame, done chan<- struct{}, lgr *log.Entry) {
	defer close(done)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-port.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, e.Data); err != nil {
				lgr.WithError(err).Debug("event write failed")
				conn.Close()
				drain(port)
				return
			}
		case r := <-replies:
			b, _ := json.Marshal(r)
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				conn.Close()
				drain(port)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				conn.Close()
				drain(port)
				return
			}
		}
	}
}

// drain discards events until the port is closed by the reader side.
func drain(port Port) {
	for range port.Events() {
	}
}
