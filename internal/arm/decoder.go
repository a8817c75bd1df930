// Package arm is the ARM A32 target: a rule set describing the encoding
// space, a decoder driven by a decision table built from it, and the
// sandbox policy parameters.
package arm

import (
	"encoding/binary"
	"fmt"

	"ncval/internal/dtable"
	"ncval/internal/validator"
)

// Decoder decodes little-endian A32 words.
type Decoder struct {
	table *dtable.Table
}

// NewDecoder builds the decision table for Rules.
func NewDecoder() (*Decoder, error) {
	t, err := dtable.Build(Rules)
	if err != nil {
		return nil, fmt.Errorf("build arm decision table: %w", err)
	}
	return &Decoder{table: t}, nil
}

// Table returns the decision table backing d.
func (d *Decoder) Table() *dtable.Table { return d.table }

func (d *Decoder) Alignment() int { return 4 }

func (d *Decoder) Decode(code []byte, offset int, addr uint32) (validator.Instruction, error) {
	if addr%4 != 0 {
		return validator.Instruction{}, fmt.Errorf("%w: address %#x is not word aligned", validator.ErrInvalidEncoding, addr)
	}
	if offset < 0 || len(code)-offset < 4 {
		return validator.Instruction{}, fmt.Errorf("%w: %d bytes left at %#x", validator.ErrTruncated, max(len(code)-offset, 0), addr)
	}
	w := binary.LittleEndian.Uint32(code[offset:])
	r, ok := d.table.Lookup(w)
	if !ok {
		return validator.Instruction{}, fmt.Errorf("%w: %08x", validator.ErrInvalidEncoding, w)
	}
	inst := classify(w, addr, r)
	inst.Offset = offset
	return inst, nil
}

// Class returns the name of the rule class w decodes to, or "" when no rule
// matches.
func (d *Decoder) Class(w uint32) string {
	r, ok := d.table.Lookup(w)
	if !ok {
		return ""
	}
	return class(r.Class).String()
}
