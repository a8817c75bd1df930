package validator

import (
	"fmt"
	"strings"
)

// Region is a code image handed to the validator by the loader.
type Region struct {
	Code []byte
	// Base is the address the first byte will be mapped at.
	Base uint32
	// Trampolines are fixed addresses outside the region that direct
	// branches may always target.
	Trampolines []uint32
	// ExemptOffsets are instruction starts excused from the bundle
	// crossing rule.
	ExemptOffsets []int
}

// Report is the outcome of one validation pass.
type Report struct {
	Accepted   bool        `json:"accepted"`
	Violations []Violation `json:"violations"`
	// Instructions holds every descriptor decoded, in address order.
	Instructions []Instruction `json:"-"`
	// Targets is the sorted set of valid control-transfer target offsets.
	// It is only populated when the region is accepted.
	Targets []int `json:"targets,omitempty"`
	// Consumed is the number of bytes covered by decoded instructions and
	// literal pools.
	Consumed int `json:"consumed"`
	Size     int `json:"size"`
}

// Verdict returns "accept" or "reject".
func (r *Report) Verdict() string {
	if r.Accepted {
		return "accept"
	}
	return "reject"
}

// WriteSets maps instruction offsets to the registers they write.
func (r *Report) WriteSets() map[int]RegisterList {
	m := make(map[int]RegisterList, len(r.Instructions))
	for i := range r.Instructions {
		if d := r.Instructions[i].Defs; !d.Empty() {
			m[r.Instructions[i].Offset] = d
		}
	}
	return m
}

// ViolationsAt returns the violations recorded at off.
func (r *Report) ViolationsAt(off int) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Offset == off {
			out = append(out, v)
		}
	}
	return out
}

// CountByKind tallies violations per kind.
func (r *Report) CountByKind() map[Kind]int {
	m := make(map[Kind]int)
	for _, v := range r.Violations {
		m[v.Kind]++
	}
	return m
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d/%d bytes, %d instructions, %d violations\n",
		r.Verdict(), r.Consumed, r.Size, len(r.Instructions), len(r.Violations))
	for _, v := range r.Violations {
		b.WriteString("  ")
		b.WriteString(v.String())
		b.WriteByte('\n')
	}
	return b.String()
}
