package types

import (
	crand "crypto/rand"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressCodec(t *testing.T) {
	pubKeyBytes := make([]byte, 32)
	_, _ = crand.Read(pubKeyBytes)

	addr0 := EncodeAddress(pubKeyBytes)
	require.True(t, strings.HasPrefix(addr0, "zp"))

	// wrong prefix
	_addr0 := fmt.Sprintf("cz%s", addr0[2:])
	_, err := DecodeAddress(_addr0)
	require.ErrorContains(t, err, "wrong prefix")

	bzAddr, err := DecodeAddress(addr0)
	require.NoError(t, err)
	require.Equal(t, pubKeyBytes, bzAddr)

	// broken checksum
	_, err = DecodeAddress(addr0[:len(addr0)-1] + "1")
	require.Error(t, err)
}

func TestAddressPubKey(t *testing.T) {
	kp, err := NewKeypair()
	require.NoError(t, err)

	pubKey1, err := Addr2Pub(kp.Address())
	require.NoError(t, err)
	require.True(t, kp.PublicKey().Equal(pubKey1))

	imported, err := KeypairFromAddress(kp.Address())
	require.NoError(t, err)
	require.False(t, imported.HasPrivate())
	require.Equal(t, kp.PubBytes(), imported.PubBytes())

	_, err = imported.Sign(Hash{}, 0)
	require.ErrorIs(t, err, ErrNoPrivateKey)
}
