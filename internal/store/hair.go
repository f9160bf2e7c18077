package store

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodePoints packs hair points as little-endian float32 triplets.
func EncodePoints(points [][3]float32) []byte {
	data := make([]byte, len(points)*12)
	for i, p := range points {
		for j, v := range p {
			binary.LittleEndian.PutUint32(data[i*12+j*4:], math.Float32bits(v))
		}
	}
	return data
}

// DecodePoints converts little-endian float32 triplets back to points.
// Each 12 bytes = one point.
func DecodePoints(data []byte) ([][3]float32, error) {
	if len(data)%12 != 0 {
		return nil, fmt.Errorf("hair points: %d bytes is not a whole number of points", len(data))
	}
	points := make([][3]float32, len(data)/12)
	for i := range points {
		for j := 0; j < 3; j++ {
			bits := binary.LittleEndian.Uint32(data[i*12+j*4:])
			points[i][j] = math.Float32frombits(bits)
		}
	}
	return points, nil
}

// EncodeSizes packs per-curve point counts as little-endian uint16.
func EncodeSizes(sizes []uint16) []byte {
	data := make([]byte, len(sizes)*2)
	for i, s := range sizes {
		binary.LittleEndian.PutUint16(data[i*2:], s)
	}
	return data
}

// DecodeSizes converts little-endian uint16 values back to point counts.
func DecodeSizes(data []byte) ([]uint16, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("hair sizes: odd length %d", len(data))
	}
	sizes := make([]uint16, len(data)/2)
	for i := range sizes {
		sizes[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return sizes, nil
}
