package validator

import "sort"

// bundleChecker enforces the fixed-window layout and collects the
// bundle-aligned instruction starts.
type bundleChecker struct {
	size    uint32
	base    uint32
	exempt  map[int]bool
	targets map[int]bool
}

func newBundleChecker(size int, r Region) *bundleChecker {
	b := &bundleChecker{
		size:    uint32(size),
		base:    r.Base,
		targets: make(map[int]bool),
	}
	if len(r.ExemptOffsets) > 0 {
		b.exempt = make(map[int]bool, len(r.ExemptOffsets))
		for _, off := range r.ExemptOffsets {
			b.exempt[off] = true
		}
	}
	return b
}

// index returns the bundle number containing addr.
func (b *bundleChecker) index(addr uint32) uint32 { return addr / b.size }

func (b *bundleChecker) aligned(addr uint32) bool { return addr%b.size == 0 }

// boundary returns the region offset of the first bundle boundary after off.
func (b *bundleChecker) boundary(off int) int {
	addr := b.base + uint32(off)
	return off + int(b.size-addr%b.size)
}

func (b *bundleChecker) check(inst *Instruction, vs *violations) {
	if inst.Addr%b.size+uint32(inst.Size) > b.size && !b.exempt[inst.Offset] {
		vs.add(inst.Offset, BundleCrossing, "%s (%d bytes) at %#x crosses a %d-byte bundle boundary",
			inst.Name, inst.Size, inst.Addr, b.size)
	}
	// A call returns to the following instruction, which must start a bundle.
	if inst.Branch.Link && (inst.Addr+uint32(inst.Size))%b.size != 0 {
		vs.add(inst.Offset, UnsafeControlTransfer, "%s does not end its bundle, so its return address is not a valid target", inst.Name)
	}
	if b.aligned(inst.Addr) && !inst.LiteralPool {
		b.targets[inst.Offset] = true
	}
}

// isTarget reports whether off is a bundle-aligned instruction start.
func (b *bundleChecker) isTarget(off int) bool { return b.targets[off] }

func (b *bundleChecker) sortedTargets() []int {
	out := make([]int, 0, len(b.targets))
	for off := range b.targets {
		out = append(out, off)
	}
	sort.Ints(out)
	return out
}
