package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := Gen()
	require.NoError(t, err)

	msg := []byte("hello graelnode")
	sig := kp.Private.Sign(msg)
	assert.True(t, kp.Public.Verify(msg, sig))
	assert.False(t, kp.Public.Verify([]byte("tampered"), sig))
}

func TestWIFRoundTrip(t *testing.T) {
	kp, err := Gen()
	require.NoError(t, err)

	pubWIF := kp.Public.WIF()
	gotPub, err := ParsePublicKeyWIF(pubWIF)
	require.NoError(t, err)
	assert.True(t, kp.Public.Equal(gotPub))

	privWIF := kp.Private.WIF()
	gotPriv, err := ParsePrivateKeyWIF(privWIF)
	require.NoError(t, err)
	assert.Equal(t, kp.Private.Bytes, gotPriv.Bytes)
}

func TestWIFRejectsBadChecksum(t *testing.T) {
	kp, err := Gen()
	require.NoError(t, err)
	wif := []byte(kp.Public.WIF())
	// The last 8 base64 characters encode the trailing checksum bytes;
	// changing one of them keeps the decoded length intact.
	i := len(wif) - 8
	if wif[i] == 'A' {
		wif[i] = 'B'
	} else {
		wif[i] = 'A'
	}
	_, err = ParsePublicKeyWIF(string(wif))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}
