package validator

import (
	"fmt"
	"math/bits"
	"strings"
)

// MaxRegisters is the number of general purpose registers a target may name.
const MaxRegisters = 32

// Register identifies a general purpose register of the target.
type Register uint8

// NoRegister marks an absent register operand.
const NoRegister Register = 0xff

func (r Register) String() string {
	if r == NoRegister {
		return "none"
	}
	return fmt.Sprintf("r%d", uint8(r))
}

// RegisterList is a set of registers.
type RegisterList uint32

// Registers builds a list from individual registers.
func Registers(regs ...Register) RegisterList {
	var l RegisterList
	for _, r := range regs {
		l = l.Add(r)
	}
	return l
}

func (l RegisterList) Add(r Register) RegisterList {
	if r >= MaxRegisters {
		return l
	}
	return l | 1<<r
}

func (l RegisterList) Remove(r Register) RegisterList {
	if r >= MaxRegisters {
		return l
	}
	return l &^ (1 << r)
}

func (l RegisterList) Contains(r Register) bool {
	return r < MaxRegisters && l&(1<<r) != 0
}

func (l RegisterList) Union(o RegisterList) RegisterList { return l | o }

func (l RegisterList) Count() int { return bits.OnesCount32(uint32(l)) }

func (l RegisterList) Empty() bool { return l == 0 }

// Each calls fn for every register in ascending order.
func (l RegisterList) Each(fn func(Register)) {
	for v := uint32(l); v != 0; v &= v - 1 {
		fn(Register(bits.TrailingZeros32(v)))
	}
}

// Format renders the list using name for each register.
func (l RegisterList) Format(name func(Register) string) string {
	if name == nil {
		name = Register.String
	}
	var parts []string
	l.Each(func(r Register) {
		parts = append(parts, name(r))
	})
	return "{" + strings.Join(parts, ", ") + "}"
}

func (l RegisterList) String() string { return l.Format(nil) }
