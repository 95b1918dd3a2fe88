package wsframer

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn wraps a gorilla/websocket connection with separate write mutexes for
// the video and audio paths (gorilla connections are not safe for
// concurrent writes from multiple goroutines), mirroring the teacher's
// videoMu/audioMu split for the same reason.
type Conn struct {
	ws *websocket.Conn

	videoMu sync.Mutex
	audioMu sync.Mutex
	ctrlMu  sync.Mutex
}

// NewConn wraps an established gorilla/websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// WriteVideo sends one binary video frame.
func (c *Conn) WriteVideo(frame []byte) error {
	c.videoMu.Lock()
	defer c.videoMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

// WriteAudio sends one binary audio frame.
func (c *Conn) WriteAudio(frame []byte) error {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

// WriteControl sends one text control message.
func (c *Conn) WriteControl(text string) error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

// ReadMessage reads the next message, returning its type and payload.
func (c *Conn) ReadMessage() (messageType int, payload []byte, err error) {
	return c.ws.ReadMessage()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}
