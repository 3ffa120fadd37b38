// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package emulator

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Thermoquad/osmolink/pkg/dji"
)

// StatusInterval is the push period for periodic status subscriptions (10 Hz)
const StatusInterval = 100 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  dji.MaxFrameSize,
	WriteBufferSize: dji.MaxFrameSize,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request to a WebSocket and serves the camera over
// it, one frame per binary message, until the client disconnects.
func (c *Camera) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	c.log.Info().Str("remote", r.RemoteAddr).Msg("controller attached")

	var writeMu sync.Mutex
	write := func(b []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return ws.WriteMessage(websocket.BinaryMessage, b)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(StatusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if b := c.StatusPush(); b != nil {
					if err := write(b); err != nil {
						return
					}
				}
			}
		}
	}()

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			c.log.Info().Err(err).Msg("controller detached")
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		for _, out := range c.Handle(data) {
			if err := write(out); err != nil {
				c.log.Warn().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}
