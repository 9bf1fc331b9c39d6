package postgres

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"

	"github.com/sqlmodel/sqlmodel-go/core"
)

func TestMD5Response(t *testing.T) {
	got := md5Response("user", "pass", []byte{1, 2, 3, 4})
	assert.Equal(t, "md56cf524962d8413e6b0cdf79fddff891c", got)
}

func TestScramFirstMessage(t *testing.T) {
	c, err := newScramClient("secret")
	require.NoError(t, err)

	first := string(c.First())
	assert.True(t, strings.HasPrefix(first, "n,,n=,r="), first)
	assert.NotEmpty(t, c.clientNonce)
}

func TestScramRejectsForeignNonce(t *testing.T) {
	c, err := newScramClient("secret")
	require.NoError(t, err)

	_, err = c.Final([]byte("r=somebodyelse,s=" +
		base64.StdEncoding.EncodeToString([]byte("salt")) + ",i=4096"))
	require.Error(t, err)
	assert.Equal(t, core.KindConnectionAuthentication, core.KindOf(err))
	assert.Contains(t, err.Error(), "nonce")
}

func TestScramRejectsMissingIterations(t *testing.T) {
	c, err := newScramClient("secret")
	require.NoError(t, err)

	_, err = c.Final([]byte("r=" + c.clientNonce + "ext,s=" +
		base64.StdEncoding.EncodeToString([]byte("salt")) + ",i=0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "iteration")
}

func TestScramRoundTrip(t *testing.T) {
	const password = "pencil"
	salt := []byte("0123456789abcdef")
	const iterations = 4096

	c, err := newScramClient(password)
	require.NoError(t, err)

	serverNonce := c.clientNonce + "serverpart"
	serverFirst := "r=" + serverNonce +
		",s=" + base64.StdEncoding.EncodeToString(salt) +
		",i=4096"

	final, err := c.Final([]byte(serverFirst))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(final), "c=biws,r="+serverNonce+",p="))

	// the server's side of mutual authentication
	salted := pbkdf2.Key([]byte(password), salt, iterations, sha256.Size, sha256.New)
	serverKey := hmacSHA256(salted, "Server Key")
	signature := hmacSHA256(serverKey, c.authMessage)
	serverFinal := "v=" + base64.StdEncoding.EncodeToString(signature)

	require.NoError(t, c.Verify([]byte(serverFinal)))

	// a forged signature must not verify
	err = c.Verify([]byte("v=" + base64.StdEncoding.EncodeToString([]byte("bogus signature bytes!!"))))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signature mismatch")
}

func TestScramVerifyServerError(t *testing.T) {
	c, err := newScramClient("secret")
	require.NoError(t, err)

	err = c.Verify([]byte("e=invalid-proof"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid-proof")
}
