// Package disasm renders A32 code as GNU-syntax text for listings. It is
// display only: verdicts come from the validator's own decoder, never from
// here.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/arch/arm/armasm"
)

// armasm.Decode initializes package state on first use.
var decodeMu sync.Mutex

// Inst is a simplified decoded instruction.
type Inst struct {
	Offset int    // offset of the instruction in the region
	Addr   uint32 // address of the instruction
	Text   string // formatted disassembly string
	Op     string // mnemonic in lowercase
	Raw    uint32 // raw encoding
}

// Stream is a linear sequence of instructions.
type Stream []Inst

// Decode disassembles one word at offset. Words armasm cannot decode are
// rendered as .word directives.
func Decode(code []byte, offset int, addr uint32) (Inst, bool) {
	if offset < 0 || len(code)-offset < 4 {
		return Inst{}, false
	}
	raw := binary.LittleEndian.Uint32(code[offset:])
	in := Inst{Offset: offset, Addr: addr, Raw: raw}
	decodeMu.Lock()
	dec, err := armasm.Decode(code[offset:offset+4], armasm.ModeARM)
	decodeMu.Unlock()
	if err != nil {
		in.Op = ".word"
		in.Text = fmt.Sprintf(".word %#08x", raw)
		return in, true
	}
	in.Text = armasm.GNUSyntax(dec)
	in.Op, _, _ = strings.Cut(in.Text, " ")
	return in, true
}

// Disassemble decodes code loaded at base word by word. A trailing partial
// word is rendered as a .byte directive.
func Disassemble(code []byte, base uint32) Stream {
	s := make(Stream, 0, len(code)/4+1)
	off := 0
	for ; off+4 <= len(code); off += 4 {
		in, _ := Decode(code, off, base+uint32(off))
		s = append(s, in)
	}
	if off < len(code) {
		var parts []string
		for _, b := range code[off:] {
			parts = append(parts, fmt.Sprintf("%#02x", b))
		}
		s = append(s, Inst{
			Offset: off,
			Addr:   base + uint32(off),
			Op:     ".byte",
			Text:   ".byte " + strings.Join(parts, ", "),
		})
	}
	return s
}

// At returns the instruction at offset off, if any.
func (s Stream) At(off int) (Inst, bool) {
	i := off / 4
	if off%4 != 0 || i < 0 || i >= len(s) || s[i].Offset != off {
		return Inst{}, false
	}
	return s[i], true
}

func (in Inst) String() string {
	if in.Op == ".byte" {
		return fmt.Sprintf("%08x:           %s", in.Addr, in.Text)
	}
	return fmt.Sprintf("%08x: %08x  %s", in.Addr, in.Raw, in.Text)
}
