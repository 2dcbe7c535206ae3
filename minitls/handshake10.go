package minitls

import (
	"crypto/rsa"
	"crypto/subtle"
	"io"
)

// Server handshake state machine (RFC 2246 Section 7.3, server role).
//
// The machine is a closed set of state types. Each inbound handshake or CCS
// record maps the current state to a successor plus an ordered list of record
// commands for the driver to apply; anything outside the legal (state, input)
// pairs is ErrorProtocol. The machine touches no engine fields other than the
// construction-time configuration, so all cipher installs flow through the
// returned commands and the driver applies them at the exact record boundary.

type handshakeState interface {
	stateName() string
}

// stateInitial awaits a ClientHello.
type stateInitial struct{}

// stateHandshaking has sent ServerHello/Certificate/ServerHelloDone and
// awaits the ClientKeyExchange. transcript holds the raw handshake-message
// bytes seen or emitted so far, framing included, in protocol order.
type stateHandshaking struct {
	params     securityParameters
	suite      *CipherSuiteInfo
	transcript [][]byte
}

// stateKeysExchanged holds the derived but not yet activated cipher contexts
// until ChangeCipherSpec installs them.
type stateKeysExchanged struct {
	pendingWrite *cryptoContext // server-write, becomes the encryptor
	pendingRead  *cryptoContext // client-write, becomes the decryptor
	params       securityParameters
	suite        *CipherSuiteInfo
	transcript   [][]byte
}

// stateEstablished passes application data; a further ClientHello here starts
// a renegotiation.
type stateEstablished struct {
	cipherSuite uint16
}

func (stateInitial) stateName() string        { return "initial" }
func (*stateHandshaking) stateName() string   { return "handshaking" }
func (*stateKeysExchanged) stateName() string { return "keys_exchanged" }
func (stateEstablished) stateName() string    { return "established" }

// recordCommand is one driver instruction: either emit a record through the
// current encryptor, or swap the encryptor for all subsequent records in the
// batch.
type recordCommand interface {
	isRecordCommand()
}

type emitRecord struct {
	typ     uint8
	payload []byte
}

type changeEncryptor struct {
	ctx *cryptoContext
}

func (emitRecord) isRecordCommand()      {}
func (changeEncryptor) isRecordCommand() {}

// decryptorCommand tells the driver whether to install a new decryptor for
// the records that follow the current one.
type decryptorCommand struct {
	install bool
	ctx     *cryptoContext
}

var passDecryptor = decryptorCommand{}

// handleHandshakeRecord advances the handshake machine by one decrypted
// record. Only HANDSHAKE and CHANGE_CIPHER_SPEC records reach this point;
// the driver routes alerts and application data itself.
func (e *Engine) handleHandshakeRecord(hs handshakeState, typ uint8, fragment []byte) (handshakeState, []recordCommand, decryptorCommand, error) {
	if typ == recordTypeChangeCipherSpec {
		st, ok := hs.(*stateKeysExchanged)
		if !ok {
			return nil, nil, passDecryptor, protocolError("ChangeCipherSpec in state %s", hs.stateName())
		}
		if len(fragment) != 1 || fragment[0] != changeCipherSpecBody[0] {
			return nil, nil, passDecryptor, protocolError("malformed ChangeCipherSpec body")
		}
		// Outbound: the CCS record goes out before the encryptor swap, so
		// it is the last record of the old epoch (plaintext on the first
		// handshake, under the old cipher on a renegotiation). Inbound: the new
		// decryptor takes effect from the next record.
		cmds := []recordCommand{
			emitRecord{typ: recordTypeChangeCipherSpec, payload: changeCipherSpecBody},
			changeEncryptor{ctx: st.pendingWrite},
		}
		return st, cmds, decryptorCommand{install: true, ctx: st.pendingRead}, nil
	}

	if typ != recordTypeHandshake {
		return nil, nil, passDecryptor, protocolError("unexpected record type %d during handshake", typ)
	}
	if len(fragment) < 4 {
		return nil, nil, passDecryptor, protocolError("truncated handshake message")
	}
	declared := int(fragment[1])<<16 | int(fragment[2])<<8 | int(fragment[3])
	if declared != len(fragment)-4 {
		// One handshake message per record; this engine does not
		// reassemble fragmented or coalesced handshake messages.
		return nil, nil, passDecryptor, protocolError("handshake message length %d does not fill record of %d", declared, len(fragment)-4)
	}
	msgType := HandshakeType(fragment[0])

	switch st := hs.(type) {
	case stateInitial:
		if msgType != typeClientHello {
			return nil, nil, passDecryptor, protocolError("expected ClientHello, got message type %d", msgType)
		}
		return e.processClientHello(fragment)
	case stateEstablished:
		if msgType != typeClientHello {
			return nil, nil, passDecryptor, protocolError("expected ClientHello, got message type %d", msgType)
		}
		// Renegotiation: handled exactly as the initial ClientHello. The
		// active ciphers stay installed until the next ChangeCipherSpec.
		return e.processClientHello(fragment)
	case *stateHandshaking:
		if msgType != typeClientKeyExchange {
			return nil, nil, passDecryptor, protocolError("expected ClientKeyExchange, got message type %d", msgType)
		}
		return e.processClientKeyExchange(st, fragment)
	case *stateKeysExchanged:
		if msgType != typeFinished {
			return nil, nil, passDecryptor, protocolError("expected Finished, got message type %d", msgType)
		}
		return e.processFinished(st, fragment)
	default:
		return nil, nil, passDecryptor, protocolError("handshake message in state %s", hs.stateName())
	}
}

func (e *Engine) processClientHello(fragment []byte) (handshakeState, []recordCommand, decryptorCommand, error) {
	hello, err := parseClientHello(fragment)
	if err != nil {
		return nil, nil, passDecryptor, err
	}

	suite := selectCipherSuite(hello.cipherSuites)
	if suite == nil {
		return nil, nil, passDecryptor, protocolError("no mutually supported cipher suite")
	}

	serverRandom := make([]byte, randomLength)
	if _, err := io.ReadFull(e.rand, serverRandom); err != nil {
		return nil, nil, passDecryptor, cryptoError(err, "drawing server random")
	}

	params := securityParameters{
		entity:        serverEnd,
		cipherSuite:   suite.ID,
		clientVersion: hello.vers,
		clientRandom:  append([]byte(nil), hello.random...),
		serverRandom:  serverRandom,
	}

	serverHello := (&serverHelloMsg{
		vers:        VersionTLS10,
		random:      serverRandom,
		cipherSuite: suite.ID,
	}).marshal()
	certificate := (&certificateMsg{certificates: e.certChain}).marshal()
	helloDone := marshalServerHelloDone()

	// The transcript records the exact bytes that crossed the wire: the
	// inbound ClientHello fragment and each server message with its
	// handshake framing.
	transcript := [][]byte{
		append([]byte(nil), fragment...),
		serverHello,
		certificate,
		helloDone,
	}

	cmds := []recordCommand{
		emitRecord{typ: recordTypeHandshake, payload: serverHello},
		emitRecord{typ: recordTypeHandshake, payload: certificate},
		emitRecord{typ: recordTypeHandshake, payload: helloDone},
	}
	next := &stateHandshaking{params: params, suite: suite, transcript: transcript}
	return next, cmds, passDecryptor, nil
}

func (e *Engine) processClientKeyExchange(st *stateHandshaking, fragment []byte) (handshakeState, []recordCommand, decryptorCommand, error) {
	kx, err := parseClientKeyExchange(fragment)
	if err != nil {
		return nil, nil, passDecryptor, err
	}

	preMaster, err := e.decryptPreMaster(st.params.clientVersion, kx.encryptedPreMaster)
	if err != nil {
		return nil, nil, passDecryptor, err
	}

	params := st.params
	params.masterSecret = masterFromPreMasterSecret(preMaster, params.clientRandom, params.serverRandom)

	suite := st.suite
	clientMAC, serverMAC, clientKey, serverKey, clientIV, serverIV := keysFromMasterSecret(
		params.masterSecret, params.clientRandom, params.serverRandom,
		suite.MACLength, suite.KeyLength, suite.IVLength)

	serverCtx, err := newCryptoContext(suite, serverKey, serverIV, serverMAC)
	if err != nil {
		return nil, nil, passDecryptor, err
	}
	clientCtx, err := newCryptoContext(suite, clientKey, clientIV, clientMAC)
	if err != nil {
		return nil, nil, passDecryptor, err
	}

	transcript := append(st.transcript, append([]byte(nil), fragment...))
	next := &stateKeysExchanged{
		pendingWrite: serverCtx,
		pendingRead:  clientCtx,
		params:       params,
		suite:        suite,
		transcript:   transcript,
	}
	return next, nil, passDecryptor, nil
}

// decryptPreMaster recovers the 48-byte pre-master secret per RFC 2246
// Section 7.4.7.1. A PKCS#1 failure or short plaintext is ErrorCrypto; a
// version mismatch inside a well-formed plaintext is silently replaced with
// random bytes so padding oracles learn nothing from the Finished failure
// that follows.
func (e *Engine) decryptPreMaster(clientVersion uint16, ciphertext []byte) ([]byte, error) {
	plaintext, err := rsa.DecryptPKCS1v15(nil, e.privateKey, ciphertext)
	if err != nil {
		return nil, cryptoError(err, "RSA pre-master decryption")
	}
	if len(plaintext) < preMasterLength {
		return nil, cryptoError(nil, "RSA plaintext is %d bytes, want at least %d", len(plaintext), preMasterLength)
	}
	preMaster := plaintext[len(plaintext)-preMasterLength:]

	versionOK := subtle.ConstantTimeByteEq(preMaster[0], byte(clientVersion>>8)) &
		subtle.ConstantTimeByteEq(preMaster[1], byte(clientVersion))
	if versionOK != 1 {
		substitute := make([]byte, preMasterLength)
		if _, err := io.ReadFull(e.rand, substitute); err != nil {
			return nil, cryptoError(err, "drawing substitute pre-master")
		}
		preMaster = substitute
	}
	return preMaster, nil
}

func (e *Engine) processFinished(st *stateKeysExchanged, fragment []byte) (handshakeState, []recordCommand, decryptorCommand, error) {
	finished, err := parseFinished(fragment)
	if err != nil {
		return nil, nil, passDecryptor, err
	}

	expected := finishedSum(st.params.masterSecret, clientFinishedLabel, st.transcript)
	if subtle.ConstantTimeCompare(expected, finished.verifyData) != 1 {
		return nil, nil, passDecryptor, protocolError("Finished verify_data mismatch")
	}

	withClientFinished := append(st.transcript, fragment)
	serverVerify := finishedSum(st.params.masterSecret, serverFinishedLabel, withClientFinished)
	serverFinished := (&finishedMsg{verifyData: serverVerify}).marshal()

	cmds := []recordCommand{
		emitRecord{typ: recordTypeHandshake, payload: serverFinished},
	}
	// The transcript is done with; Established keeps no handshake buffers.
	return stateEstablished{cipherSuite: st.suite.ID}, cmds, passDecryptor, nil
}
