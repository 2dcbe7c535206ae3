package minitls

import (
	"crypto/rsa"
	"errors"
	"io"
)

// Engine is a server-side TLS 1.0 record-and-handshake engine. It performs
// no I/O, keeps no clocks and spawns nothing: the host feeds it the bytes it
// read from its transport and ships back whatever Handle returns. One engine
// serves one connection and must not be driven from two goroutines at once;
// independent engines share nothing and need no locking.
//
// The certificate chain and private key may be shared read-only across any
// number of engines.
type Engine struct {
	certChain  [][]byte
	privateKey *rsa.PrivateKey
	rand       io.Reader

	hs  handshakeState
	in  *cryptoContext // decryptor; nil until a ChangeCipherSpec installs one
	out *cryptoContext // encryptor; nil until a ChangeCipherSpec installs one
	err error          // terminal failure, sticky
}

// Event is something Handle surfaced to the host: decrypted application
// data, handshake completion, or a peer alert.
type Event interface {
	isEvent()
}

// ApplicationDataEvent carries one record's decrypted application payload.
type ApplicationDataEvent struct {
	Data []byte
}

// HandshakeCompleteEvent fires when the server Finished has been emitted and
// application data may flow.
type HandshakeCompleteEvent struct {
	CipherSuite uint16
}

// AlertEvent carries a peer alert. Warning-level alerts do not change engine
// state; fatal ones also move the engine to its terminal error state.
type AlertEvent struct {
	Level       uint8
	Description uint8
}

// DescriptionString returns the RFC 2246 name of the alert description.
func (a AlertEvent) DescriptionString() string {
	return alertDescriptionString(a.Description)
}

func (ApplicationDataEvent) isEvent()   {}
func (HandshakeCompleteEvent) isEvent() {}
func (AlertEvent) isEvent()             {}

// NewEngine builds an engine in the initial state with both record
// directions unprotected. certChain is the DER certificate sequence for the
// Certificate message, leaf first; privateKey decrypts ClientKeyExchange;
// rand supplies the server random (and the Bleichenbacher substitute).
func NewEngine(certChain [][]byte, privateKey *rsa.PrivateKey, rand io.Reader) (*Engine, error) {
	if len(certChain) == 0 {
		return nil, errors.New("minitls: empty certificate chain")
	}
	if privateKey == nil {
		return nil, errors.New("minitls: nil private key")
	}
	if rand == nil {
		return nil, errors.New("minitls: nil random source")
	}
	return &Engine{
		certChain:  certChain,
		privateKey: privateKey,
		rand:       rand,
		hs:         stateInitial{},
	}, nil
}

// Established reports whether the handshake has completed and not been
// superseded by a renegotiation in progress.
func (e *Engine) Established() bool {
	_, ok := e.hs.(stateEstablished)
	return ok
}

// Handle drives the engine with one inbound buffer of complete records and
// returns the concatenated outbound records plus any surfaced events. On
// error no output bytes are produced, the engine is terminal, and every
// later call returns the same error.
func (e *Engine) Handle(inbound []byte) ([]byte, []Event, error) {
	if e.err != nil {
		return nil, nil, e.err
	}

	records, err := splitRecords(inbound)
	if err != nil {
		return nil, nil, e.fail(err)
	}

	var outbound []byte
	var events []Event
	for _, rec := range records {
		plaintext := rec.fragment
		if e.in != nil {
			plaintext, err = e.in.decrypt(rec.typ, rec.fragment)
			if err != nil {
				return nil, events, e.fail(err)
			}
		}

		switch rec.typ {
		case recordTypeAlert:
			level, desc, err := parseAlert(plaintext)
			if err != nil {
				return nil, events, e.fail(err)
			}
			events = append(events, AlertEvent{Level: level, Description: desc})
			if level == alertLevelFatal {
				return nil, events, e.fail(protocolError("peer sent fatal alert: %s", alertDescriptionString(desc)))
			}

		case recordTypeApplicationData:
			// Legal whenever a read cipher is active: that covers
			// Established and the window during a renegotiation where
			// the old ciphers still protect traffic.
			if e.in == nil {
				return nil, events, e.fail(protocolError("application data in state %s", e.hs.stateName()))
			}
			events = append(events, ApplicationDataEvent{Data: plaintext})

		default:
			wasEstablished := e.Established()
			next, cmds, decCmd, err := e.handleHandshakeRecord(e.hs, rec.typ, plaintext)
			if err != nil {
				return nil, events, e.fail(err)
			}

			for _, cmd := range cmds {
				switch cmd := cmd.(type) {
				case emitRecord:
					fragment := cmd.payload
					if e.out != nil {
						fragment, err = e.out.encrypt(cmd.typ, cmd.payload)
						if err != nil {
							return nil, events, e.fail(err)
						}
					}
					outbound = append(outbound, assembleRecord(cmd.typ, fragment)...)
				case changeEncryptor:
					e.out = cmd.ctx
				}
			}
			if decCmd.install {
				e.in = decCmd.ctx
			}
			e.hs = next

			if st, ok := next.(stateEstablished); ok && !wasEstablished {
				events = append(events, HandshakeCompleteEvent{CipherSuite: st.cipherSuite})
			}
		}
	}
	return outbound, events, nil
}

// Send encrypts application data for the peer and returns the wire record.
// It is legal once an encryptor is active, which includes the window during
// a renegotiation before the new ChangeCipherSpec.
func (e *Engine) Send(data []byte) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.out == nil {
		return nil, protocolError("no active write cipher")
	}
	fragment, err := e.out.encrypt(recordTypeApplicationData, data)
	if err != nil {
		return nil, e.fail(err)
	}
	return assembleRecord(recordTypeApplicationData, fragment), nil
}

// FatalAlertFor maps an engine error onto the fatal alert record the host
// should send before closing the transport. For non-engine errors it falls
// back to internal_error.
func FatalAlertFor(err error) []byte {
	var ee *EngineError
	if errors.As(err, &ee) {
		return assembleAlert(ee.AlertLevel(), ee.AlertDescription())
	}
	return assembleAlert(alertLevelFatal, alertInternalError)
}

func (e *Engine) fail(err error) error {
	e.err = err
	return err
}
