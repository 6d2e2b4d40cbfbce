package live

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garment-configurator/internal/composite"
)

func result(gen uint64, c color.RGBA) *composite.Result {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return &composite.Result{Image: img, Version: gen * 10, Generation: gen}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (Header, image.Image) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var h Header
	require.NoError(t, conn.ReadJSON(&h))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, h.Bytes, len(data))
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return h, img
}

func TestBroadcastToClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()
	defer hub.Close()

	require.NoError(t, hub.Broadcast(result(1, color.RGBA{R: 255, A: 255})))

	// Late joiners get the newest frame immediately.
	conn := dial(t, srv)
	h, img := readFrame(t, conn)
	assert.Equal(t, uint64(1), h.Generation)
	assert.Equal(t, uint64(10), h.Version)
	assert.Equal(t, 4, h.Width)
	r, _, _, a := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), a)
	assert.Equal(t, 1, hub.Clients())

	require.NoError(t, hub.Broadcast(result(2, color.RGBA{B: 255, A: 255})))
	h, img = readFrame(t, conn)
	assert.Equal(t, uint64(2), h.Generation)
	_, _, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), b)
}

func TestClientDisconnect(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	require.NoError(t, hub.Broadcast(result(1, color.RGBA{A: 255})))
	conn := dial(t, srv)
	readFrame(t, conn)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.NoError(t, hub.Broadcast(result(2, color.RGBA{A: 255})))
}

func TestServePNG(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/composite.png")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, hub.Broadcast(result(3, color.RGBA{G: 255, A: 255})))
	resp, err = http.Get(srv.URL + "/composite.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "3", resp.Header.Get("X-Composite-Generation"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestOfferKeepsNewest(t *testing.T) {
	ch := make(chan *Frame, 1)
	a, b := &Frame{}, &Frame{}
	offer(ch, a)
	offer(ch, b)
	assert.Same(t, b, <-ch)
}

func TestBroadcastIgnoresEmpty(t *testing.T) {
	hub := NewHub()
	assert.NoError(t, hub.Broadcast(nil))
	assert.NoError(t, hub.Broadcast(&composite.Result{}))
	assert.Nil(t, hub.Latest())
}
