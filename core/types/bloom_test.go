package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBloom_OrBloom_SetsUnionOfBits(t *testing.T) {
	var a, b Bloom
	a[0] = 0b0001
	b[0] = 0b0010
	a.OrBloom(b)
	require.Equal(t, byte(0b0011), a[0])
}

func TestBloom_OrBloom_LeavesOtherUnmodified(t *testing.T) {
	var a, b Bloom
	b[5] = 0xff
	a.OrBloom(b)
	require.Equal(t, byte(0xff), b[5], "OrBloom must not mutate its argument")
}

func TestMergeBlooms_UnionsAllInputs(t *testing.T) {
	var b1, b2, b3 Bloom
	b1[0] = 0b001
	b2[1] = 0b010
	b3[2] = 0b100

	merged := MergeBlooms([]Bloom{b1, b2, b3})
	require.Equal(t, byte(0b001), merged[0])
	require.Equal(t, byte(0b010), merged[1])
	require.Equal(t, byte(0b100), merged[2])
}

func TestMergeBlooms_EmptyInputIsZeroBloom(t *testing.T) {
	merged := MergeBlooms(nil)
	require.Equal(t, Bloom{}, merged)
}

func TestBloom_Bytes_ReturnsIndependentCopy(t *testing.T) {
	var b Bloom
	b[0] = 0x01
	out := b.Bytes()
	out[0] = 0xff
	require.Equal(t, byte(0x01), b[0], "mutating the returned slice must not affect the Bloom")
}
