package postgres

import (
	"bytes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// md5Response computes the historical md5 password response:
// "md5" + hex(md5(hex(md5(password + user)) + salt)).
func md5Response(user, password string, salt []byte) string {
	inner := md5.Sum([]byte(password + user))
	innerHex := hex.EncodeToString(inner[:])
	outer := md5.Sum(append([]byte(innerHex), salt...))
	return "md5" + hex.EncodeToString(outer[:])
}

// scramClient runs the client side of SCRAM-SHA-256 (RFC 5802 / RFC 7677)
// without channel binding.
type scramClient struct {
	password    string
	clientNonce string
	clientFirst string
	authMessage string
	serverKey   []byte
}

func newScramClient(password string) (*scramClient, error) {
	raw := make([]byte, 18)
	if _, err := rand.Read(raw); err != nil {
		return nil, core.WrapError(core.KindConnectionAuthentication, "generate nonce", err)
	}
	nonce := base64.StdEncoding.EncodeToString(raw)
	c := &scramClient{password: password, clientNonce: nonce}
	c.clientFirst = "n=,r=" + nonce
	return c, nil
}

// First returns the client-first message including the GS2 header.
func (c *scramClient) First() []byte {
	return []byte("n,," + c.clientFirst)
}

// Final consumes the server-first message and returns the client-final
// message carrying the proof.
func (c *scramClient) Final(serverFirst []byte) ([]byte, error) {
	var serverNonce, saltB64 string
	var iterations int
	for _, attr := range strings.Split(string(serverFirst), ",") {
		if len(attr) < 2 || attr[1] != '=' {
			return nil, scramErr("malformed server-first attribute %q", attr)
		}
		switch attr[0] {
		case 'r':
			serverNonce = attr[2:]
		case 's':
			saltB64 = attr[2:]
		case 'i':
			n, err := strconv.Atoi(attr[2:])
			if err != nil {
				return nil, scramErr("invalid iteration count %q", attr[2:])
			}
			iterations = n
		}
	}
	if !strings.HasPrefix(serverNonce, c.clientNonce) {
		return nil, scramErr("server nonce does not extend the client nonce")
	}
	if iterations < 1 {
		return nil, scramErr("missing iteration count")
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return nil, scramErr("invalid salt encoding")
	}

	salted := pbkdf2.Key([]byte(c.password), salt, iterations, sha256.Size, sha256.New)
	clientKey := hmacSHA256(salted, "Client Key")
	storedKey := sha256.Sum256(clientKey)
	c.serverKey = hmacSHA256(salted, "Server Key")

	withoutProof := "c=biws,r=" + serverNonce
	c.authMessage = c.clientFirst + "," + string(serverFirst) + "," + withoutProof
	signature := hmacSHA256(storedKey[:], c.authMessage)
	proof := make([]byte, len(clientKey))
	for i := range clientKey {
		proof[i] = clientKey[i] ^ signature[i]
	}
	final := withoutProof + ",p=" + base64.StdEncoding.EncodeToString(proof)
	return []byte(final), nil
}

// Verify checks the server-final signature, completing mutual auth.
func (c *scramClient) Verify(serverFinal []byte) error {
	msg := string(serverFinal)
	if strings.HasPrefix(msg, "e=") {
		return scramErr("server rejected authentication: %s", msg[2:])
	}
	if !strings.HasPrefix(msg, "v=") {
		return scramErr("malformed server-final message")
	}
	want, err := base64.StdEncoding.DecodeString(msg[2:])
	if err != nil {
		return scramErr("invalid server signature encoding")
	}
	got := hmacSHA256(c.serverKey, c.authMessage)
	if !bytes.Equal(got, want) {
		return scramErr("server signature mismatch")
	}
	return nil
}

func hmacSHA256(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}

func scramErr(format string, args ...any) error {
	return core.Errorf(core.KindConnectionAuthentication, "scram: %s", fmt.Sprintf(format, args...))
}
