package pcm

import "testing"

func TestFloat32RoundTrip(t *testing.T) {
	values := []float32{0, 1, -1, 0.5, -0.5, 0.123456}
	buf := make([]byte, 4)
	for _, v := range values {
		EncodeFloat32(buf, v)
		got := DecodeFloat32(buf)
		if got != v {
			t.Errorf("round trip %v -> %v", v, got)
		}
	}
}

func TestEncodeDecodeFloat32Slice(t *testing.T) {
	src := []float32{0, 0.25, -0.25, 1, -1}
	buf := make([]byte, len(src)*4)
	EncodeFloat32Slice(buf, src)

	out := make([]float32, len(src))
	DecodeFloat32Slice(out, buf)

	for i := range src {
		if out[i] != src[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], src[i])
		}
	}
}

func TestInt32PCMFloat32RoundTripClamped(t *testing.T) {
	src := []byte{0, 0, 0, 0, 0xff, 0xff, 0xff, 0x7f} // 0, max int32
	floatBuf := make([]byte, len(src))
	Int32PCMToFloat32(floatBuf, src)

	v0 := DecodeFloat32(floatBuf[0:])
	v1 := DecodeFloat32(floatBuf[4:])
	if v0 != 0 {
		t.Errorf("sample 0 = %v, want 0", v0)
	}
	if v1 < 0.999 || v1 > 1.0 {
		t.Errorf("sample 1 = %v, want ~1.0", v1)
	}

	pcmBuf := make([]byte, len(src))
	Float32ToInt32PCM(pcmBuf, floatBuf)

	clipped := make([]byte, 4)
	EncodeFloat32(clipped, 2.0) // out of range, should clip to 1.0 on conversion
	clipOut := make([]byte, 4)
	Float32ToInt32PCM(clipOut, clipped)
	// int32 representation of 1.0 * MaxInt32 == MaxInt32
	if clipOut[3]&0x80 != 0 {
		t.Errorf("clipped value should remain positive, got sign bit set")
	}
}
