package dtable

import (
	"fmt"
	"strings"
)

// Width is the number of bits in an encoding word.
const Width = 32

// Pattern is a fixed-width bit pattern: a word w matches when
// w&Mask == Value.
type Pattern struct {
	Mask  uint32
	Value uint32
}

// ParsePattern parses a pattern written most significant bit first. '0' and
// '1' are fixed bits, spaces are ignored and any other character is a
// wildcard.
func ParsePattern(s string) (Pattern, error) {
	bits := strings.ReplaceAll(s, " ", "")
	if len(bits) != Width {
		return Pattern{}, fmt.Errorf("pattern %q has %d bits, want %d", s, len(bits), Width)
	}
	var p Pattern
	for i := 0; i < Width; i++ {
		bit := uint32(1) << (Width - 1 - i)
		switch bits[i] {
		case '0':
			p.Mask |= bit
		case '1':
			p.Mask |= bit
			p.Value |= bit
		}
	}
	return p, nil
}

// Matches reports whether w is covered by the pattern.
func (p Pattern) Matches(w uint32) bool { return w&p.Mask == p.Value }

// nibble returns the mask and value restricted to nibble n.
func (p Pattern) nibble(n uint) (mask, value uint32) {
	return (p.Mask >> (4 * n)) & 0xf, (p.Value >> (4 * n)) & 0xf
}

func (p Pattern) String() string {
	var b strings.Builder
	for i := Width - 1; i >= 0; i-- {
		bit := uint32(1) << i
		switch {
		case p.Mask&bit == 0:
			b.WriteByte('x')
		case p.Value&bit != 0:
			b.WriteByte('1')
		default:
			b.WriteByte('0')
		}
		if i%4 == 0 && i > 0 {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
