// Package leb128 reads and writes the LEB128 integer encodings used
// throughout the Wasm binary format.
package leb128

import (
	"errors"
	"fmt"
)

const (
	maxVarintLen32 = 5
	maxVarintLen33 = 5
	maxVarintLen64 = 10
)

var (
	errOverflow32 = errors.New("overflows a 32-bit integer")
	errOverflow33 = errors.New("overflows a 33-bit integer")
	errOverflow64 = errors.New("overflows a 64-bit integer")
)

// EncodeInt32 encodes the signed value into a buffer in LEB128 format.
func EncodeInt32(value int32) []byte {
	return EncodeInt64(int64(value))
}

// EncodeInt64 encodes the signed value into a buffer in LEB128 format.
func EncodeInt64(value int64) (buf []byte) {
	for {
		b := byte(value & 0x7f)
		value >>= 7
		if (value != 0 || b&0x40 != 0) && (value != -1 || b&0x40 == 0) {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			return
		}
	}
}

// EncodeUint32 encodes the unsigned value into a buffer in LEB128 format.
func EncodeUint32(value uint32) []byte {
	return EncodeUint64(uint64(value))
}

// EncodeUint64 encodes the unsigned value into a buffer in LEB128 format.
func EncodeUint64(value uint64) (buf []byte) {
	for {
		b := byte(value & 0x7f)
		value >>= 7
		if value != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			return
		}
	}
}

// LoadUint32 decodes an unsigned 32-bit integer from the buffer,
// returning the value and the number of bytes consumed.
func LoadUint32(buf []byte) (uint32, uint64, error) {
	v, n, err := loadUint(buf, 32)
	return uint32(v), n, err
}

// LoadUint64 decodes an unsigned 64-bit integer from the buffer.
func LoadUint64(buf []byte) (uint64, uint64, error) {
	return loadUint(buf, 64)
}

func loadUint(buf []byte, bitLen uint64) (result uint64, num uint64, err error) {
	maxLen := uint64(maxVarintLen64)
	if bitLen == 32 {
		maxLen = maxVarintLen32
	}
	var shift uint64
	for {
		if num >= maxLen || num >= uint64(len(buf)) {
			if bitLen == 32 {
				return 0, 0, errOverflow32
			}
			return 0, 0, errOverflow64
		}
		b := buf[num]
		num++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			if shift+7 >= bitLen && b>>(bitLen-shift) != 0 {
				if bitLen == 32 {
					return 0, 0, errOverflow32
				}
				return 0, 0, errOverflow64
			}
			return result, num, nil
		}
		shift += 7
	}
}

// LoadInt32 decodes a signed 32-bit integer from the buffer.
func LoadInt32(buf []byte) (int32, uint64, error) {
	v, n, err := loadInt(buf, 32)
	return int32(v), n, err
}

// LoadInt64 decodes a signed 64-bit integer from the buffer.
func LoadInt64(buf []byte) (int64, uint64, error) {
	return loadInt(buf, 64)
}

func loadInt(buf []byte, bitLen uint64) (result int64, num uint64, err error) {
	maxLen := uint64(maxVarintLen64)
	if bitLen == 32 {
		maxLen = maxVarintLen32
	}
	var shift uint64
	var b byte
	for {
		if num >= maxLen || num >= uint64(len(buf)) {
			if bitLen == 32 {
				return 0, 0, errOverflow32
			}
			return 0, 0, errOverflow64
		}
		b = buf[num]
		num++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	if bitLen == 32 && (result < -(1<<31) || result >= 1<<31) {
		return 0, 0, errOverflow32
	}
	return result, num, nil
}

// LoadInt33AsInt64 decodes a signed 33-bit integer, the encoding Wasm
// uses for block types: negative values are value types, non-negative
// ones index the module's type section.
func LoadInt33AsInt64(buf []byte) (result int64, num uint64, err error) {
	var shift uint64
	var b byte
	for {
		if num >= maxVarintLen33 || num >= uint64(len(buf)) {
			return 0, 0, errOverflow33
		}
		b = buf[num]
		num++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	if result < -(1<<32) || result >= 1<<32 {
		return 0, 0, fmt.Errorf("%d: %w", result, errOverflow33)
	}
	return result, num, nil
}
