package vault

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestRoundTrip(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	enc, err := c.Encrypt("login: admin / pw: s3cret")
	require.NoError(t, err)
	assert.NotContains(t, enc, "s3cret")

	dec, err := c.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "login: admin / pw: s3cret", dec)
}

func TestNonceFreshness(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	a, _ := c.Encrypt("same")
	b, _ := c.Encrypt("same")
	assert.NotEqual(t, a, b)
}

func TestTamperFails(t *testing.T) {
	c, err := New(testKey)
	require.NoError(t, err)

	enc, _ := c.Encrypt("payload")
	raw, _ := base64.StdEncoding.DecodeString(enc)
	raw[len(raw)-1] ^= 0xff
	_, err = c.Decrypt(base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestWrongKeyFails(t *testing.T) {
	c1, _ := New(testKey)
	c2, _ := New(strings.Repeat("ab", 32))

	enc, _ := c1.Encrypt("payload")
	_, err := c2.Decrypt(enc)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestBadKeys(t *testing.T) {
	_, err := New("not-hex")
	assert.Error(t, err)
	_, err = New("abcd")
	assert.Error(t, err)
}
