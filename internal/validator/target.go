package validator

import (
	"errors"
	"fmt"
	"math/bits"
)

// Decoder turns bytes at an offset into exactly one instruction descriptor.
//
// Decode must not read past len(code). It returns an error wrapping
// ErrTruncated when the instruction would extend past the end of the buffer
// and ErrInvalidEncoding when the bytes do not form a recognised instruction.
// The same bytes at the same offset and address always decode identically.
type Decoder interface {
	Decode(code []byte, offset int, addr uint32) (Instruction, error)
	// Alignment is the step used to resynchronise after an invalid encoding.
	Alignment() int
}

// Target collects the per-architecture parameters of a validation policy.
type Target struct {
	Name    string
	Decoder Decoder

	BundleSize int
	// DataMask holds the bits a qualifying mask must clear before a register
	// is used as a memory base.
	DataMask uint32
	// CodeMask holds the bits that must be cleared before a register is used
	// as an indirect branch target.
	CodeMask uint32
	// Exempt registers are confined by policy for bounded memory accesses.
	Exempt RegisterList

	RegisterName func(Register) string
}

// Fingerprint identifies the policy for caching purposes.
func (t Target) Fingerprint() string {
	return fmt.Sprintf("%s/b%d/d%08x/c%08x/x%08x", t.Name, t.BundleSize, t.DataMask, t.CodeMask, uint32(t.Exempt))
}

func (t Target) check() error {
	if t.Decoder == nil {
		return errors.New("target has no decoder")
	}
	if t.BundleSize <= 0 || bits.OnesCount(uint(t.BundleSize)) != 1 {
		return fmt.Errorf("bundle size %d is not a power of two", t.BundleSize)
	}
	if a := t.Decoder.Alignment(); a <= 0 || a > t.BundleSize {
		return fmt.Errorf("decoder alignment %d does not fit bundle size %d", a, t.BundleSize)
	}
	if t.DataMask == 0 {
		return errors.New("data mask is zero")
	}
	if t.CodeMask == 0 {
		return errors.New("code mask is zero")
	}
	if t.CodeMask&t.DataMask != t.DataMask {
		return fmt.Errorf("code mask %#x does not cover data mask %#x", t.CodeMask, t.DataMask)
	}
	return nil
}
