package ringbuffer

import "testing"

func TestNewRoundsToPowerOf2(t *testing.T) {
	cases := []struct {
		requested uint64
		want      uint64
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 4},
		{1000, 1024},
		{1024, 1024},
	}
	for _, c := range cases {
		rb := New(c.requested)
		if rb.Size() != c.want {
			t.Errorf("New(%d).Size() = %d, want %d", c.requested, rb.Size(), c.want)
		}
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	rb := New(16)
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	n := rb.Write(data)
	if n != len(data) {
		t.Fatalf("Write() = %d, want %d", n, len(data))
	}

	out := make([]byte, len(data))
	n = rb.Read(out)
	if n != len(data) {
		t.Fatalf("Read() = %d, want %d", n, len(data))
	}
	for i := range data {
		if out[i] != data[i] {
			t.Fatalf("out[%d] = %d, want %d", i, out[i], data[i])
		}
	}
}

func TestWritePartialSuccessNoError(t *testing.T) {
	rb := New(8)
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}

	n := rb.Write(data)
	if n != 8 {
		t.Fatalf("Write() = %d, want 8 (buffer capacity)", n)
	}
	if rb.AvailableWrite() != 0 {
		t.Fatalf("AvailableWrite() = %d, want 0", rb.AvailableWrite())
	}

	// A further write with no space must report 0, not error.
	n = rb.Write([]byte{99})
	if n != 0 {
		t.Fatalf("Write() on full buffer = %d, want 0", n)
	}
}

func TestReadPartialSuccessNoError(t *testing.T) {
	rb := New(8)
	rb.Write([]byte{1, 2, 3})

	out := make([]byte, 8)
	n := rb.Read(out)
	if n != 3 {
		t.Fatalf("Read() = %d, want 3", n)
	}

	// Reading an empty buffer must report 0, not error.
	n = rb.Read(out)
	if n != 0 {
		t.Fatalf("Read() on empty buffer = %d, want 0", n)
	}
}

func TestWraparound(t *testing.T) {
	rb := New(8)

	rb.Write([]byte{1, 2, 3, 4, 5, 6})
	out := make([]byte, 4)
	rb.Read(out)

	// writePos is now 6, readPos 4; writing 6 more bytes wraps around.
	n := rb.Write([]byte{7, 8, 9, 10, 11, 12})
	if n != 6 {
		t.Fatalf("Write() = %d, want 6", n)
	}

	got := make([]byte, 8)
	n = rb.Read(got)
	if n != 8 {
		t.Fatalf("Read() = %d, want 8", n)
	}
	want := []byte{5, 6, 7, 8, 9, 10, 11, 12}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestReset(t *testing.T) {
	rb := New(8)
	rb.Write([]byte{1, 2, 3})
	rb.Reset()

	if rb.AvailableRead() != 0 {
		t.Fatalf("AvailableRead() after Reset() = %d, want 0", rb.AvailableRead())
	}
	if rb.AvailableWrite() != rb.Size() {
		t.Fatalf("AvailableWrite() after Reset() = %d, want %d", rb.AvailableWrite(), rb.Size())
	}
}

func TestReadSlicesAndConsume(t *testing.T) {
	rb := New(8)
	rb.Write([]byte{1, 2, 3, 4, 5, 6})
	out := make([]byte, 4)
	rb.Read(out) // readPos -> 4

	rb.Write([]byte{7, 8, 9, 10}) // wraps

	first, second, total := rb.ReadSlices()
	if total != 6 {
		t.Fatalf("total = %d, want 6", total)
	}
	if second == nil {
		t.Fatalf("expected wraparound to produce a second slice")
	}
	combined := append(append([]byte{}, first...), second...)
	want := []byte{5, 6, 7, 8, 9, 10}
	for i := range want {
		if combined[i] != want[i] {
			t.Fatalf("combined[%d] = %d, want %d", i, combined[i], want[i])
		}
	}

	rb.Consume(total)
	if rb.AvailableRead() != 0 {
		t.Fatalf("AvailableRead() after Consume() = %d, want 0", rb.AvailableRead())
	}
}
