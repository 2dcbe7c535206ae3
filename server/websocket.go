package server

import (
	"crypto/rand"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"minitls-server/minitls"
)

// WebSocket transport: each binary message carries one or more complete TLS
// records, in both directions. This is the tunnel shape used when a browser
// or proxy relays the TLS byte stream instead of opening a raw socket.

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler upgrades HTTP requests and pumps TLS records between the
// websocket and a per-connection engine.
func (s *Server) WSHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Error("websocket upgrade failed", zap.Error(err))
			return
		}
		defer ws.Close()

		connID := uuid.NewString()
		log := s.log.WithConnection(connID)
		log.Info("websocket connection accepted", zap.String("remote_addr", ws.RemoteAddr().String()))

		engine, err := minitls.NewEngine(s.certChain, s.key, rand.Reader)
		if err != nil {
			log.Error("engine construction failed", zap.Error(err))
			return
		}

		for {
			msgType, data, err := ws.ReadMessage()
			if err != nil {
				log.Info("websocket closed", zap.Error(err))
				return
			}
			if msgType != websocket.BinaryMessage {
				continue
			}

			out, events, err := engine.Handle(data)
			if err != nil {
				s.log.Security("engine failure, sending fatal alert",
					zap.String("conn_id", connID), zap.Error(err))
				ws.WriteMessage(websocket.BinaryMessage, minitls.FatalAlertFor(err))
				return
			}
			if len(out) > 0 {
				if err := ws.WriteMessage(websocket.BinaryMessage, out); err != nil {
					log.Info("websocket write failed", zap.Error(err))
					return
				}
			}

			if err := s.dispatchEvents(wsWriter{ws}, engine, events, log); err != nil {
				return
			}
		}
	})
}

// wsWriter adapts a websocket connection to io.Writer for the shared event
// dispatch path; every Write becomes one binary message.
type wsWriter struct {
	ws *websocket.Conn
}

func (w wsWriter) Write(p []byte) (int, error) {
	if err := w.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
