package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/permabft/chain/core/types"
)

func TestKeccak256_IsDeterministicAndInputSensitive(t *testing.T) {
	a := Keccak256([]byte("permabft"))
	b := Keccak256([]byte("permabft"))
	c := Keccak256([]byte("permabft!"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}

func TestKeccak256_ConcatenatesAllInputs(t *testing.T) {
	whole := Keccak256([]byte("hello world"))
	split := Keccak256([]byte("hello "), []byte("world"))
	require.Equal(t, whole, split)
}

func TestKeccak256Bytes_MatchesKeccak256(t *testing.T) {
	data := []byte("permabft")
	require.Equal(t, Keccak256(data)[:], Keccak256Bytes(data))
}

func TestPrivateKey_SignAndRecover_RoundTrips(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	digest := Keccak256([]byte("a transaction"))
	sig, err := key.Sign(digest)
	require.NoError(t, err)

	addr, pub, err := Recover(sig, digest)
	require.NoError(t, err)
	require.Equal(t, key.Address(), addr)
	require.Equal(t, key.PublicKey(), pub)
}

func TestVerify_AcceptsGenuineSignatureAndRejectsWrongSigner(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	other, err := GeneratePrivateKey()
	require.NoError(t, err)

	digest := Keccak256([]byte("payload"))
	sig, err := key.Sign(digest)
	require.NoError(t, err)

	require.True(t, Verify(sig, digest, key.Address()))
	require.False(t, Verify(sig, digest, other.Address()))
}

func TestVerify_RejectsTamperedDigest(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	digest := Keccak256([]byte("payload"))
	sig, err := key.Sign(digest)
	require.NoError(t, err)

	tampered := Keccak256([]byte("different payload"))
	require.False(t, Verify(sig, tampered, key.Address()))
}

func TestAddressFromPublicKey_DerivesLast20BytesOfKeccak(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	want := Keccak256Bytes(key.PublicKey())
	require.Equal(t, types.BytesToAddress(want[len(want)-20:]), key.Address())
}

func TestPrivateKeyFromBytes_RejectsWrongLength(t *testing.T) {
	_, err := PrivateKeyFromBytes([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestPrivateKeyFromBytes_RoundTripsThroughAddress(t *testing.T) {
	original, err := GeneratePrivateKey()
	require.NoError(t, err)

	raw := original.key.Serialize()
	restored, err := PrivateKeyFromBytes(raw)
	require.NoError(t, err)
	require.Equal(t, original.Address(), restored.Address())
}
