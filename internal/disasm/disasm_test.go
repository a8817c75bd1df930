package disasm

import (
	"encoding/binary"
	"strings"
	"sync"
	"testing"

	"ncval/internal/arm"
)

func words(ws ...uint32) []byte {
	b := make([]byte, 4*len(ws))
	for i, w := range ws {
		binary.LittleEndian.PutUint32(b[4*i:], w)
	}
	return b
}

func TestDisassemble(t *testing.T) {
	code := append(words(0xe3c00103, 0xe5901000, 0xe12fff1e), 0xab, 0xcd)
	s := Disassemble(code, 0x20000)
	if len(s) != 4 {
		t.Fatalf("got %d instructions, want 4", len(s))
	}

	tests := []struct {
		off  int
		op   string
		text string
	}{
		{0, "bic", "bic r0, r0, #0xc0000000"},
		{4, "ldr", "ldr r1, [r0]"},
		{8, "bx", "bx lr"},
		{12, ".byte", ".byte 0xab, 0xcd"},
	}
	for _, tt := range tests {
		in, ok := s.At(tt.off)
		if !ok {
			t.Fatalf("no instruction at offset %d", tt.off)
		}
		if in.Op != tt.op {
			t.Errorf("offset %d: op = %q, want %q", tt.off, in.Op, tt.op)
		}
		if !strings.HasPrefix(in.Text, tt.op) || !strings.Contains(tt.text, in.Op) {
			t.Errorf("offset %d: text = %q, want %q", tt.off, in.Text, tt.text)
		}
		if in.Addr != 0x20000+uint32(tt.off) {
			t.Errorf("offset %d: addr = %#x", tt.off, in.Addr)
		}
	}

	if got := s[0].String(); !strings.HasPrefix(got, "00020000: e3c00103  bic") {
		t.Errorf("String() = %q", got)
	}
	if _, ok := s.At(2); ok {
		t.Error("At(2) found an instruction at an unaligned offset")
	}
	if _, ok := s.At(16); ok {
		t.Error("At(16) found an instruction past the end")
	}
}

func TestDecodeShort(t *testing.T) {
	if _, ok := Decode([]byte{1, 2, 3}, 0, 0); ok {
		t.Error("Decode accepted a 3-byte buffer")
	}
	if _, ok := Decode(words(0xe320f000), -4, 0); ok {
		t.Error("Decode accepted a negative offset")
	}
}

// The listing decoder and the validator's decoder must agree on the
// mnemonic of ordinary instructions.
func TestAgreesWithValidatorDecoder(t *testing.T) {
	d, err := arm.NewDecoder()
	if err != nil {
		t.Fatal(err)
	}
	for _, w := range []uint32{
		0xe3c00103, // bic r0, r0, #0xc0000000
		0xe5901000, // ldr r1, [r0]
		0xe5801004, // str r1, [r0, #4]
		0xe12fff1e, // bx lr
		0xe320f000, // nop
		0xe1901f9f, // ldrex r1, [r0]
	} {
		code := words(w)
		inst, err := d.Decode(code, 0, 0x20000)
		if err != nil {
			t.Fatalf("%08x: %v", w, err)
		}
		in, _ := Decode(code, 0, 0x20000)
		if in.Op != inst.Name {
			t.Errorf("%08x: listing says %q, validator says %q", w, in.Op, inst.Name)
		}
	}
}

func TestConcurrentDecode(t *testing.T) {
	code := words(0xe3c00103, 0xe5901000, 0xe12fff1e, 0xe320f000)
	want := Disassemble(code, 0)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := Disassemble(code, 0)
			for i := range got {
				if got[i] != want[i] {
					t.Errorf("instruction %d: got %v, want %v", i, got[i], want[i])
				}
			}
		}()
	}
	wg.Wait()
}
