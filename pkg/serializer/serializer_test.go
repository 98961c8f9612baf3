package serializer

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarUint64RoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 255, 256, 65535, 65536, 1 << 40, 1 << 63, ^uint64(0)}
	for _, v := range values {
		enc := EncodeVarUint64(v)
		got, n, err := DecodeVarUint64(enc)
		require.NoError(t, err)
		assert.Equal(t, len(enc), n)
		assert.Equal(t, v, got)
	}
}

// TestVarUint64OrderPreserved is the row-ID ordering invariant from
// spec.md §3.1/§8: for all a < b, EncodeVarUint64(a) < EncodeVarUint64(b)
// byte-wise. Exhaustive up to 10^6, then sampled for larger magnitudes.
func TestVarUint64OrderPreserved(t *testing.T) {
	const exhaustive = 1_000_000
	prev := EncodeVarUint64(0)
	for v := uint64(1); v <= exhaustive; v++ {
		cur := EncodeVarUint64(v)
		require.Truef(t, bytes.Compare(prev, cur) < 0, "order violated at %d", v)
		prev = cur
	}

	rng := rand.New(rand.NewSource(42))
	samples := make([]uint64, 2000)
	for i := range samples {
		samples[i] = rng.Uint64()
	}
	for i := 0; i < len(samples); i++ {
		for j := i + 1; j < len(samples); j++ {
			a, b := samples[i], samples[j]
			if a == b {
				continue
			}
			if a > b {
				a, b = b, a
			}
			ea, eb := EncodeVarUint64(a), EncodeVarUint64(b)
			assert.True(t, bytes.Compare(ea, eb) < 0)
		}
	}
}

func TestFixedUint64RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 42, 1 << 40, ^uint64(0)} {
		enc := EncodeFixedUint64(v)
		require.Len(t, enc, 8)
		got, err := DecodeFixedUint64(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestFixedUint32AndUint16(t *testing.T) {
	enc32 := EncodeFixedUint32(123456)
	require.Len(t, enc32, 4)
	got32, err := DecodeFixedUint32(enc32)
	require.NoError(t, err)
	assert.EqualValues(t, 123456, got32)

	enc16 := EncodeFixedUint16(4242)
	require.Len(t, enc16, 2)
	got16, err := DecodeFixedUint16(enc16)
	require.NoError(t, err)
	assert.EqualValues(t, 4242, got16)
}

func TestDecodeVarUint64TruncatedErrors(t *testing.T) {
	_, _, err := DecodeVarUint64(nil)
	require.Error(t, err)

	_, _, err = DecodeVarUint64([]byte{3, 1, 2})
	require.Error(t, err)
}

func TestOrderedInt32RoundTripAndOrder(t *testing.T) {
	values := []int32{math.MinInt32, -1 << 20, -1, 0, 1, 1 << 20, math.MaxInt32}
	var prev []byte
	for _, v := range values {
		enc := EncodeOrderedInt32(v)
		got, err := DecodeOrderedInt32(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		if prev != nil {
			assert.True(t, bytes.Compare(prev, enc) < 0)
		}
		prev = enc
	}
}

func TestOrderedInt64RoundTripAndOrder(t *testing.T) {
	values := []int64{math.MinInt64, -1 << 40, -1, 0, 1, 1 << 40, math.MaxInt64}
	var prev []byte
	for _, v := range values {
		enc := EncodeOrderedInt64(v)
		got, err := DecodeOrderedInt64(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		if prev != nil {
			assert.True(t, bytes.Compare(prev, enc) < 0)
		}
		prev = enc
	}
}

func TestOrderedFloat32RoundTripAndOrder(t *testing.T) {
	values := []float32{-1e30, -1.5, -0.0001, 0, 0.0001, 1.5, 1e30}
	var prev []byte
	for _, v := range values {
		enc := EncodeOrderedFloat32(v)
		got, err := DecodeOrderedFloat32(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		if prev != nil {
			assert.Truef(t, bytes.Compare(prev, enc) < 0, "order violated at %v", v)
		}
		prev = enc
	}
}

func TestOrderedFloat64RoundTripAndOrder(t *testing.T) {
	values := []float64{-1e300, -1.5, -0.0001, 0, 0.0001, 1.5, 1e300}
	var prev []byte
	for _, v := range values {
		enc := EncodeOrderedFloat64(v)
		got, err := DecodeOrderedFloat64(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		if prev != nil {
			assert.Truef(t, bytes.Compare(prev, enc) < 0, "order violated at %v", v)
		}
		prev = enc
	}
}

func TestOrderedBytesRoundTripAndOrder(t *testing.T) {
	values := [][]byte{
		{},
		[]byte("a"),
		[]byte("aa"),
		[]byte("ab"),
		[]byte("b"),
		{0x00},
		{0x00, 0x01},
		{0x01},
	}
	for _, v := range values {
		enc := EncodeOrderedBytes(v)
		got, n, err := DecodeOrderedBytes(enc)
		require.NoError(t, err)
		assert.Equal(t, len(enc), n)
		assert.Equal(t, v, got)
	}

	// lexicographic order among values without embedded NUL must be preserved
	ordered := [][]byte{[]byte("a"), []byte("aa"), []byte("ab"), []byte("b")}
	for i := 1; i < len(ordered); i++ {
		assert.True(t, bytes.Compare(EncodeOrderedBytes(ordered[i-1]), EncodeOrderedBytes(ordered[i])) < 0)
	}
}
