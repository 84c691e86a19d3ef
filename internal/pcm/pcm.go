// Package pcm converts between the engine's canonical interleaved
// float32 sample buffers and the integer PCM byte layouts used at the
// hardware boundary and in WAV files.
package pcm

import (
	"encoding/binary"
	"math"

	"github.com/drgolem/audiobridge/pkg/types"
)

// EncodeFloat32 writes v into dst as little-endian IEEE-754 bits.
// dst must have at least 4 bytes.
func EncodeFloat32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

// DecodeFloat32 reads a little-endian IEEE-754 float32 from src.
// src must have at least 4 bytes.
func DecodeFloat32(src []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src))
}

// EncodeFloat32Slice writes src as interleaved little-endian float32 bytes
// into dst. dst must have at least len(src)*types.SampleSize bytes.
func EncodeFloat32Slice(dst []byte, src []float32) {
	for i, v := range src {
		EncodeFloat32(dst[i*types.SampleSize:], v)
	}
}

// DecodeFloat32Slice reads interleaved little-endian float32 bytes from
// src into dst. len(dst) samples are read from src.
func DecodeFloat32Slice(dst []float32, src []byte) {
	for i := range dst {
		dst[i] = DecodeFloat32(src[i*types.SampleSize:])
	}
}

// Int32PCMToFloat32 converts interleaved little-endian signed 32-bit PCM
// bytes in src into interleaved float32 bytes in dst, normalizing to
// [-1, 1]. len(src) and len(dst) must agree on sample count.
func Int32PCMToFloat32(dst, src []byte) {
	n := len(src) / 4
	for i := 0; i < n; i++ {
		iv := int32(binary.LittleEndian.Uint32(src[i*4:]))
		fv := float32(iv) / float32(math.MaxInt32)
		EncodeFloat32(dst[i*4:], fv)
	}
}

// Float32ToInt32PCM converts interleaved float32 bytes in src (clipped to
// [-1, 1]) into interleaved little-endian signed 32-bit PCM bytes in dst.
func Float32ToInt32PCM(dst, src []byte) {
	n := len(src) / 4
	for i := 0; i < n; i++ {
		fv := DecodeFloat32(src[i*4:])
		if fv > 1 {
			fv = 1
		} else if fv < -1 {
			fv = -1
		}
		iv := int32(float64(fv) * math.MaxInt32)
		binary.LittleEndian.PutUint32(dst[i*4:], uint32(iv))
	}
}
