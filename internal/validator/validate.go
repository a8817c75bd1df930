package validator

import (
	"errors"
	"fmt"
)

// Validator checks code regions against one target policy. It holds no
// mutable state and may be shared between goroutines.
type Validator struct {
	target Target
}

// New returns a Validator for t after checking its parameters.
func New(t Target) (*Validator, error) {
	if err := t.check(); err != nil {
		return nil, fmt.Errorf("target %q: %w", t.Name, err)
	}
	return &Validator{target: t}, nil
}

// Target returns the policy the validator enforces.
func (v *Validator) Target() Target { return v.target }

// Fingerprint identifies the validator's policy.
func (v *Validator) Fingerprint() string { return v.target.Fingerprint() }

// run is the state of one validation pass.
type run struct {
	region  Region
	bundles *bundleChecker
	masks   *maskChecker
	vs      violations
	insts   []Instruction
}

// Validate decodes the whole region and reports every violation found. It
// never returns an error; a decode failure is a violation like any other.
func (v *Validator) Validate(r Region) *Report {
	t := v.target
	rn := &run{
		region:  r,
		bundles: newBundleChecker(t.BundleSize, r),
		masks:   newMaskChecker(t),
	}
	code := r.Code
	align := t.Decoder.Alignment()

	if r.Base%uint32(t.BundleSize) != 0 {
		rn.vs.add(0, BundleCrossing, "region base %#x is not aligned to %d-byte bundles", r.Base, t.BundleSize)
	}

	consumed := 0
	started := false
	var bundle uint32
	for off := 0; off < len(code); {
		addr := r.Base + uint32(off)
		if b := rn.bundles.index(addr); !started || b != bundle {
			if started {
				rn.masks.endBundle(&rn.vs)
			}
			started, bundle = true, b
		}

		inst, err := t.Decoder.Decode(code, off, addr)
		if err == nil && (inst.Size <= 0 || off+inst.Size > len(code)) {
			if inst.Size <= 0 {
				err = fmt.Errorf("%w: zero-length decode", ErrInvalidEncoding)
			} else {
				err = fmt.Errorf("%w: %d-byte instruction at %#x", ErrTruncated, inst.Size, addr)
			}
		}
		if err != nil {
			if errors.Is(err, ErrTruncated) {
				rn.vs.add(off, TruncatedInstruction, "%v", err)
				break
			}
			rn.vs.add(off, InvalidEncoding, "%v", err)
			off += align
			consumed = min(off, len(code))
			continue
		}
		inst.Offset, inst.Addr = off, addr
		rn.insts = append(rn.insts, inst)
		rn.step(&rn.insts[len(rn.insts)-1])

		off += inst.Size
		if inst.LiteralPool && rn.bundles.aligned(addr) {
			// The rest of the bundle is constant data.
			off = min(rn.bundles.boundary(inst.Offset), len(code))
		}
		consumed = off
	}
	if started {
		rn.masks.endBundle(&rn.vs)
	}

	if consumed != len(code) {
		rn.vs.add(consumed, TrailingPartialInstruction, "%d trailing bytes do not form a complete instruction", len(code)-consumed)
	}
	rn.checkDirectBranches()

	rep := &Report{
		Violations:   rn.vs.sorted(),
		Instructions: rn.insts,
		Consumed:     consumed,
		Size:         len(code),
	}
	rep.Accepted = len(rep.Violations) == 0 && consumed == len(code)
	if rep.Accepted {
		rep.Targets = rn.bundles.sortedTargets()
	}
	return rep
}

func (rn *run) step(inst *Instruction) {
	kind, detail, bad := safetyViolation(inst)
	if bad {
		rn.vs.add(inst.Offset, kind, "%s", detail)
	}
	rn.bundles.check(inst, &rn.vs)
	rn.masks.check(inst, &rn.vs, !bad)
}

// checkDirectBranches verifies that every branch with a statically known
// destination lands on a valid target or a declared trampoline.
func (rn *run) checkDirectBranches() {
	base, size := rn.region.Base, uint32(len(rn.region.Code))
	for i := range rn.insts {
		inst := &rn.insts[i]
		switch inst.Branch.Kind {
		case BranchNone, BranchRegister:
			continue
		case BranchAbsolute, BranchRelative:
		}
		dest := inst.Branch.Target
		if dest-base < size {
			off := int(dest - base)
			if !rn.bundles.isTarget(off) {
				rn.vs.add(inst.Offset, UnsafeControlTransfer, "%s: destination %#x is not a bundle-aligned instruction start", inst.Name, dest)
			}
			continue
		}
		if !rn.isTrampoline(dest) {
			rn.vs.add(inst.Offset, UnsafeControlTransfer, "%s: destination %#x is outside the region and not a trampoline", inst.Name, dest)
		}
	}
}

func (rn *run) isTrampoline(addr uint32) bool {
	for _, t := range rn.region.Trampolines {
		if t == addr {
			return true
		}
	}
	return false
}
