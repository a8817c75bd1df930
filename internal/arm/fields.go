package arm

import (
	"math/bits"

	"ncval/internal/validator"
)

// ARM core registers with special roles.
const (
	SP validator.Register = 13
	LR validator.Register = 14
	PC validator.Register = 15
)

const (
	condEQ            validator.Cond = 0x0
	condUnconditional validator.Cond = 0xf
)

// RegisterName returns the assembler name of r.
func RegisterName(r validator.Register) string {
	switch r {
	case SP:
		return "sp"
	case LR:
		return "lr"
	case PC:
		return "pc"
	}
	return r.String()
}

// field extracts bits hi..lo of w.
func field(w uint32, hi, lo uint) uint32 {
	return (w >> lo) & (1<<(hi-lo+1) - 1)
}

func bit(w uint32, n uint) bool { return w&(1<<n) != 0 }

// reg extracts the 4-bit register number starting at bit lo.
func reg(w uint32, lo uint) validator.Register {
	return validator.Register(field(w, lo+3, lo))
}

// Standard register field positions.
func rn(w uint32) validator.Register { return reg(w, 16) }
func rd(w uint32) validator.Register { return reg(w, 12) }
func rs(w uint32) validator.Register { return reg(w, 8) }
func rm(w uint32) validator.Register { return reg(w, 0) }

func cond(w uint32) validator.Cond { return validator.Cond(w >> 28) }

// expandImm decodes a modified immediate: an 8-bit value rotated right by
// twice the 4-bit rotation field.
func expandImm(imm12 uint32) uint32 {
	return bits.RotateLeft32(imm12&0xff, -int(2*(imm12>>8)))
}

// signExtend widens the low n bits of v.
func signExtend(v uint32, n uint) int32 {
	shift := 32 - n
	return int32(v<<shift) >> shift
}

// anyPC reports whether any of regs is the program counter.
func anyPC(regs ...validator.Register) bool {
	for _, r := range regs {
		if r == PC {
			return true
		}
	}
	return false
}
