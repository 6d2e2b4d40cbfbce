// Package live streams published composites to browser previews over
// websockets.
package live

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"

	"garment-configurator/internal/composite"
	"garment-configurator/internal/logging"
)

const writeWait = 10 * time.Second

// Header precedes every PNG frame on the socket.
type Header struct {
	Generation uint64 `json:"generation"`
	Version    uint64 `json:"version"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Bytes      int    `json:"bytes"`
}

// Frame is an encoded composite.
type Frame struct {
	Header
	PNG []byte
}

type client struct {
	conn *websocket.Conn
	send chan *Frame
}

// Hub fans composites out to connected clients. Slow clients only ever see
// the newest frame.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	latest   *Frame
	closed   bool
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Encode turns a composite into a frame.
func Encode(res *composite.Result) (*Frame, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, res.Image, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode composite: %w", err)
	}
	b := res.Image.Bounds()
	return &Frame{
		Header: Header{
			Generation: res.Generation,
			Version:    res.Version,
			Width:      b.Dx(),
			Height:     b.Dy(),
			Bytes:      buf.Len(),
		},
		PNG: buf.Bytes(),
	}, nil
}

// Broadcast encodes res and queues it for every client.
func (h *Hub) Broadcast(res *composite.Result) error {
	if res == nil || res.Image == nil {
		return nil
	}
	f, err := Encode(res)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.latest = f
	for c := range h.clients {
		offer(c.send, f)
	}
	return nil
}

// offer replaces any undelivered frame with f. Callers hold h.mu.
func offer(ch chan *Frame, f *Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

// Latest returns the newest frame, or nil before the first broadcast.
func (h *Hub) Latest() *Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler serves the websocket at /ws and the newest frame at
// /composite.png.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/composite.png", h.servePNG)
	return mux
}

func (h *Hub) servePNG(w http.ResponseWriter, r *http.Request) {
	f := h.Latest()
	if f == nil {
		http.Error(w, "no composite yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(f.PNG)))
	w.Header().Set("X-Composite-Generation", strconv.FormatUint(f.Generation, 10))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(f.PNG)
}

// ServeWS upgrades the request and streams frames until the peer goes away.
// A newly connected client receives the latest frame at once.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger().Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan *Frame, 1)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.send <- h.latest
	}
	h.mu.Unlock()
	logging.Logger().Debug("preview client connected", "remote", r.RemoteAddr)

	go h.writeLoop(c)
	// Reads only detect the close; clients send nothing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(c)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for f := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(f.Header); err != nil {
			h.drop(c)
			return
		}
		if err := c.conn.WriteMessage(websocket.BinaryMessage, f.PNG); err != nil {
			h.drop(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client. Later broadcasts are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
