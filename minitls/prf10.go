package minitls

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"hash"
)

// TLS 1.0 PRF Implementation
// Based on RFC 2246 Section 5 - HMAC and the Pseudorandom Function

var (
	masterSecretLabel   = []byte("master secret")
	keyExpansionLabel   = []byte("key expansion")
	clientFinishedLabel = []byte("client finished")
	serverFinishedLabel = []byte("server finished")
)

// pHash implements the P_hash function from RFC 2246:
// P_hash(secret, seed) = HMAC_hash(secret, A(1) + seed) +
//
//	HMAC_hash(secret, A(2) + seed) + ...
//
// where A(0) = seed, A(i) = HMAC_hash(secret, A(i-1)).
// It fills all of result.
func pHash(result, secret, seed []byte, hashFunc func() hash.Hash) {
	h := hmac.New(hashFunc, secret)
	h.Write(seed)
	a := h.Sum(nil) // A(1)

	j := 0
	for j < len(result) {
		h.Reset()
		h.Write(a)
		h.Write(seed)
		b := h.Sum(nil)

		todo := len(b)
		if j+todo > len(result) {
			todo = len(result) - j
		}
		copy(result[j:j+todo], b)
		j += todo

		// A(i+1)
		h.Reset()
		h.Write(a)
		a = h.Sum(nil)
	}
}

// splitSecret halves the secret per RFC 2246 Section 5: S1 is the first
// ceil(L/2) bytes, S2 the last ceil(L/2) bytes; for odd lengths the middle
// byte is shared.
func splitSecret(secret []byte) (s1, s2 []byte) {
	s1 = secret[0 : (len(secret)+1)/2]
	s2 = secret[len(secret)/2:]
	return
}

// prf10 implements the TLS 1.0 pseudo-random function:
// PRF(secret, label, seed) = P_MD5(S1, label + seed) XOR P_SHA1(S2, label + seed)
func prf10(result, secret, label, seed []byte) {
	labelAndSeed := make([]byte, len(label)+len(seed))
	copy(labelAndSeed, label)
	copy(labelAndSeed[len(label):], seed)

	s1, s2 := splitSecret(secret)
	pHash(result, s1, labelAndSeed, md5.New)

	result2 := make([]byte, len(result))
	pHash(result2, s2, labelAndSeed, sha1.New)
	for i, b := range result2 {
		result[i] ^= b
	}
}

// masterFromPreMasterSecret derives the 48-byte master secret
// (RFC 2246 Section 8.1). Seed order is client_random + server_random.
func masterFromPreMasterSecret(preMasterSecret, clientRandom, serverRandom []byte) []byte {
	seed := make([]byte, 0, len(clientRandom)+len(serverRandom))
	seed = append(seed, clientRandom...)
	seed = append(seed, serverRandom...)

	masterSecret := make([]byte, masterSecretLength)
	prf10(masterSecret, preMasterSecret, masterSecretLabel, seed)
	return masterSecret
}

// keysFromMasterSecret expands the master secret into the connection key
// material (RFC 2246 Section 6.3). The seed order flips to
// server_random + client_random, and the block is sliced client MAC,
// server MAC, client key, server key, client IV, server IV.
func keysFromMasterSecret(masterSecret, clientRandom, serverRandom []byte, macLen, keyLen, ivLen int) (clientMAC, serverMAC, clientKey, serverKey, clientIV, serverIV []byte) {
	seed := make([]byte, 0, len(serverRandom)+len(clientRandom))
	seed = append(seed, serverRandom...)
	seed = append(seed, clientRandom...)

	n := 2*macLen + 2*keyLen + 2*ivLen
	keyMaterial := make([]byte, n)
	prf10(keyMaterial, masterSecret, keyExpansionLabel, seed)

	clientMAC = keyMaterial[:macLen]
	keyMaterial = keyMaterial[macLen:]
	serverMAC = keyMaterial[:macLen]
	keyMaterial = keyMaterial[macLen:]
	clientKey = keyMaterial[:keyLen]
	keyMaterial = keyMaterial[keyLen:]
	serverKey = keyMaterial[:keyLen]
	keyMaterial = keyMaterial[keyLen:]
	clientIV = keyMaterial[:ivLen]
	keyMaterial = keyMaterial[ivLen:]
	serverIV = keyMaterial[:ivLen]
	return
}

// finishedSum computes Finished verify_data over the raw handshake
// transcript: PRF(master_secret, label, MD5(handshake) + SHA1(handshake))[0..11]
// (RFC 2246 Section 7.4.9).
func finishedSum(masterSecret, label []byte, transcript [][]byte) []byte {
	hm := md5.New()
	hs := sha1.New()
	for _, msg := range transcript {
		hm.Write(msg)
		hs.Write(msg)
	}

	seed := make([]byte, 0, md5.Size+sha1.Size)
	seed = hm.Sum(seed)
	seed = hs.Sum(seed)

	out := make([]byte, finishedVerifyLength)
	prf10(out, masterSecret, label, seed)
	return out
}
