package server

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"minitls-server/minitls"
	"minitls-server/shared"
)

// Server hosts the pure TLS 1.0 engine on real transports. Each accepted
// connection gets its own engine; the certificate chain and key are shared
// read-only across all of them. Decrypted application data is echoed back to
// the peer, which keeps the host honest about driving both engine directions.
type Server struct {
	log       *shared.Logger
	certChain [][]byte
	key       *rsa.PrivateKey
}

func New(log *shared.Logger, certChain [][]byte, key *rsa.PrivateKey) *Server {
	return &Server{
		log:       log,
		certChain: certChain,
		key:       key,
	}
}

// Serve accepts connections until the listener closes.
func (s *Server) Serve(lis net.Listener) error {
	log := s.log.WithListener(lis.Addr().String())
	log.Info("listening")
	for {
		conn, err := lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error("accept failed", zap.Error(err))
			return err
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	log := s.log.WithConnection(connID)
	log.Info("connection accepted", zap.String("remote_addr", conn.RemoteAddr().String()))

	engine, err := minitls.NewEngine(s.certChain, s.key, rand.Reader)
	if err != nil {
		log.Error("engine construction failed", zap.Error(err))
		return
	}

	reader := minitls.NewRecordReader(conn)
	for {
		raw, err := reader.ReadRecord()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Info("connection closed", zap.Error(err))
			}
			return
		}

		out, events, err := engine.Handle(raw)
		if err != nil {
			s.log.Security("engine failure, sending fatal alert",
				zap.String("conn_id", connID), zap.Error(err))
			conn.Write(minitls.FatalAlertFor(err))
			return
		}
		if len(out) > 0 {
			if _, err := conn.Write(out); err != nil {
				log.Info("write failed", zap.Error(err))
				return
			}
		}

		if err := s.dispatchEvents(conn, engine, events, log); err != nil {
			return
		}
	}
}

// dispatchEvents handles what the engine surfaced: echo application data,
// log completion and alerts.
func (s *Server) dispatchEvents(w io.Writer, engine *minitls.Engine, events []minitls.Event, log *zap.Logger) error {
	for _, ev := range events {
		switch ev := ev.(type) {
		case minitls.HandshakeCompleteEvent:
			log.Info("handshake complete", zap.Uint16("cipher_suite", ev.CipherSuite))
		case minitls.ApplicationDataEvent:
			reply, err := engine.Send(ev.Data)
			if err != nil {
				log.Error("echo encryption failed", zap.Error(err))
				return err
			}
			if _, err := w.Write(reply); err != nil {
				log.Info("write failed", zap.Error(err))
				return err
			}
		case minitls.AlertEvent:
			log.Info("peer alert",
				zap.Uint8("level", ev.Level),
				zap.String("description", ev.DescriptionString()))
		}
	}
	return nil
}
