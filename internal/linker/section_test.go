package linker

import (
	"bytes"
	"testing"
)

func TestWriteImage(t *testing.T) {
	sections := []*Section{
		{Name: ".rodata", Addr: 0x1010, Data: []byte{5, 6, 7}},
		{Name: ".text", Addr: 0x1000, Data: []byte{1, 2, 3, 4}},
	}

	buff := &bytes.Buffer{}

	written, err := WriteImage(buff, sections, 16)
	if err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}

	// 4 bytes of .text, 12 bytes of padding, 3 bytes of .rodata, then
	// rounded up to the next 16-byte boundary
	expected := append([]byte{1, 2, 3, 4}, make([]byte, 12)...)
	expected = append(expected, 5, 6, 7)
	expected = append(expected, make([]byte, 13)...)

	if written != int64(len(expected)) {
		t.Errorf("expected %d bytes written, got %d", len(expected), written)
	}

	if !bytes.Equal(buff.Bytes(), expected) {
		t.Errorf("expected image %x, got %x", expected, buff.Bytes())
	}
}

func TestWriteImageOverlap(t *testing.T) {
	sections := []*Section{
		{Name: ".text", Addr: 0x1000, Data: make([]byte, 8)},
		{Name: ".rodata", Addr: 0x1004, Data: make([]byte, 8)},
	}

	if _, err := WriteImage(&bytes.Buffer{}, sections, 16); err == nil {
		t.Fatal("expected an error for overlapping sections")
	}
}

func TestWriteImageEmpty(t *testing.T) {
	written, err := WriteImage(&bytes.Buffer{}, nil, 4096)
	if err != nil {
		t.Fatalf("WriteImage failed: %v", err)
	}

	if written != 0 {
		t.Errorf("expected no bytes written, got %d", written)
	}
}
