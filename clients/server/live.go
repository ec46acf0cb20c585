// live.go — Websocket stream of pointer events for drag and resize.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xob0t/StoryStencil/pkg/interaction"
	"github.com/xob0t/StoryStencil/pkg/layout"
	"github.com/xob0t/StoryStencil/pkg/session"
)

// Pointer message types sent by the editor.
const (
	msgDrag   = "drag"
	msgResize = "resize"
	msgMove   = "move"
	msgUp     = "up"
	msgLeave  = "leave"
	msgReset  = "reset"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveSendBuffer = 16
)

// pointerMessage is one pointer event from the editor.
type pointerMessage struct {
	Type    string `json:"type"`
	Element string `json:"element,omitempty"`
	interaction.PointerEvent
}

// liveUpdate is pushed after every change the stream applies.
type liveUpdate struct {
	Type     string              `json:"type"`
	Revision uint64              `json:"revision"`
	Layout   layout.State        `json:"layout"`
	Gesture  interaction.Gesture `json:"gesture"`
	Error    string              `json:"error,omitempty"`
}

// liveClient is one connected editor.
type liveClient struct {
	conn *websocket.Conn
	sess *session.Session
	send chan []byte
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || s.allowedOrigin(origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	c := &liveClient{conn: conn, sess: sessionFrom(r), send: make(chan []byte, liveSendBuffer)}
	s.logger.Debug("live stream connected", "session", c.sess.ID())

	c.push(c.update(""))
	go c.writePump()
	s.readPump(c)
}

// readPump applies pointer messages until the connection drops. Dropping the
// connection ends any gesture in progress.
func (s *Server) readPump(c *liveClient) {
	defer func() {
		c.sess.EndGesture()
		close(c.send)
		c.conn.Close()
		s.logger.Debug("live stream closed", "session", c.sess.ID())
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg pointerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.push(c.update("invalid message: " + err.Error()))
			continue
		}
		changed, err := c.apply(msg)
		switch {
		case err != nil:
			c.push(c.update(err.Error()))
		case changed:
			c.push(c.update(""))
		}
	}
}

// apply feeds one message to the session and reports whether the layout or
// gesture changed.
func (c *liveClient) apply(msg pointerMessage) (bool, error) {
	ev := msg.PointerEvent
	switch msg.Type {
	case msgDrag, msgResize:
		el, err := layout.ParseElement(msg.Element)
		if err != nil {
			return false, err
		}
		if msg.Type == msgDrag {
			c.sess.BeginDrag(el, &ev)
		} else {
			c.sess.BeginResize(el, &ev)
		}
		return true, nil
	case msgMove:
		return c.sess.PointerMove(&ev), nil
	case msgUp, msgLeave:
		c.sess.EndGesture()
		return true, nil
	case msgReset:
		c.sess.ResetLayout()
		return true, nil
	}
	return false, fmt.Errorf("unknown message type %q", msg.Type)
}

func (c *liveClient) update(errMsg string) []byte {
	v := c.sess.View()
	b, _ := json.Marshal(liveUpdate{
		Type:     "layout",
		Revision: v.Revision,
		Layout:   v.Layout,
		Gesture:  v.Gesture,
		Error:    errMsg,
	})
	return b
}

// push queues a message, dropping it when the client is too slow; the next
// update carries the full layout anyway.
func (c *liveClient) push(b []byte) {
	select {
	case c.send <- b:
	default:
	}
}

func (c *liveClient) writePump() {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
