package leb128

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInt32(t *testing.T) {
	for _, c := range []struct {
		input    int32
		expected []byte
	}{
		{input: -165675008, expected: []byte{0x80, 0x80, 0x80, 0xb1, 0x7f}},
		{input: -624485, expected: []byte{0x9b, 0xf1, 0x59}},
		{input: -16256, expected: []byte{0x80, 0x81, 0x7f}},
		{input: -4, expected: []byte{0x7c}},
		{input: -1, expected: []byte{0x7f}},
		{input: 0, expected: []byte{0x00}},
		{input: 1, expected: []byte{0x01}},
		{input: 4, expected: []byte{0x04}},
		{input: 16256, expected: []byte{0x80, 0xff, 0x0}},
		{input: 624485, expected: []byte{0xe5, 0x8e, 0x26}},
		{input: 165675008, expected: []byte{0x80, 0x80, 0x80, 0xcf, 0x0}},
		{input: math.MaxInt32, expected: []byte{0xff, 0xff, 0xff, 0xff, 0x7}},
	} {
		require.Equal(t, c.expected, EncodeInt32(c.input))
		decoded, num, err := LoadInt32(c.expected)
		require.NoError(t, err)
		require.Equal(t, uint64(len(c.expected)), num)
		require.Equal(t, c.input, decoded)
	}
}

func TestEncodeDecodeInt64(t *testing.T) {
	for _, c := range []struct {
		input    int64
		expected []byte
	}{
		{input: -math.MaxInt32, expected: []byte{0x81, 0x80, 0x80, 0x80, 0x78}},
		{input: -1, expected: []byte{0x7f}},
		{input: 0, expected: []byte{0x00}},
		{input: 1, expected: []byte{0x01}},
		{input: 624485, expected: []byte{0xe5, 0x8e, 0x26}},
		{input: math.MaxInt64, expected: []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x0}},
	} {
		require.Equal(t, c.expected, EncodeInt64(c.input))
		decoded, _, err := LoadInt64(c.expected)
		require.NoError(t, err)
		require.Equal(t, c.input, decoded)
	}
}

func TestEncodeDecodeUint32(t *testing.T) {
	for _, c := range []struct {
		input    uint32
		expected []byte
	}{
		{input: 0, expected: []byte{0x00}},
		{input: 1, expected: []byte{0x01}},
		{input: 4, expected: []byte{0x04}},
		{input: 16256, expected: []byte{0x80, 0x7f}},
		{input: 624485, expected: []byte{0xe5, 0x8e, 0x26}},
		{input: 165675008, expected: []byte{0x80, 0x80, 0x80, 0x4f}},
		{input: math.MaxUint32, expected: []byte{0xff, 0xff, 0xff, 0xff, 0xf}},
	} {
		require.Equal(t, c.expected, EncodeUint32(c.input))
		decoded, num, err := LoadUint32(c.expected)
		require.NoError(t, err)
		require.Equal(t, uint64(len(c.expected)), num)
		require.Equal(t, c.input, decoded)
	}
}

func TestLoadUint32_Errors(t *testing.T) {
	for _, c := range [][]byte{
		{},                             // empty
		{0x80},                         // truncated
		{0x80, 0x80, 0x80, 0x80, 0x80}, // too long
		{0xff, 0xff, 0xff, 0xff, 0x70}, // overflows 32 bits
	} {
		_, _, err := LoadUint32(c)
		require.Error(t, err, "input %v", c)
	}
}

func TestLoadInt33AsInt64(t *testing.T) {
	for _, c := range []struct {
		bytes []byte
		exp   int64
	}{
		{bytes: []byte{0x40}, exp: -64}, // the empty block type
		{bytes: []byte{0x7f}, exp: -1},  // i32
		{bytes: []byte{0x7e}, exp: -2},  // i64
		{bytes: []byte{0x00}, exp: 0},
		{bytes: []byte{0x05}, exp: 5},
	} {
		actual, num, err := LoadInt33AsInt64(c.bytes)
		require.NoError(t, err)
		require.Equal(t, uint64(len(c.bytes)), num)
		require.Equal(t, c.exp, actual)
	}
}
