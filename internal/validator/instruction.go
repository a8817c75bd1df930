// Package validator decides whether untrusted machine code obeys the
// structural rules of a software-fault-isolation sandbox.
//
// The package is architecture neutral. A target supplies a Decoder that turns
// bytes into Instruction descriptors; the Validator walks the region, checks
// bundle alignment and the mask-then-use discipline for restricted register
// uses, and returns a Report. Validation never fails with an error: every
// defect is recorded as a Violation.
package validator

import "fmt"

// Safety is the classifier's verdict on a single instruction in isolation.
type Safety uint8

const (
	// Safe instructions are acceptable anywhere.
	Safe Safety = iota
	// ConditionallySafe instructions use a register in a restricted role;
	// the masking-pattern checker decides.
	ConditionallySafe
	Deprecated
	Undefined
	Unpredictable
	Forbidden
)

func (s Safety) String() string {
	switch s {
	case Safe:
		return "safe"
	case ConditionallySafe:
		return "conditionally-safe"
	case Deprecated:
		return "deprecated"
	case Undefined:
		return "undefined"
	case Unpredictable:
		return "unpredictable"
	case Forbidden:
		return "forbidden"
	}
	return fmt.Sprintf("Safety(%d)", uint8(s))
}

// Cond is an instruction's execution condition. Targets without conditional
// execution always use CondAlways.
type Cond uint8

const CondAlways Cond = 0xe

// Role is the restricted way an instruction uses a register.
type Role uint8

const (
	// RoleMemoryBase is the base register of a load or store.
	RoleMemoryBase Role = iota
	// RoleBranchTarget is the register holding an indirect branch or call target.
	RoleBranchTarget
)

func (r Role) String() string {
	switch r {
	case RoleMemoryBase:
		return "memory base"
	case RoleBranchTarget:
		return "branch target"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// Use is a register used in a restricted role.
type Use struct {
	Reg  Register
	Role Role
	// Bounded reports that the effective address is the register plus a
	// small constant offset.
	Bounded bool
}

// BranchKind describes how a control transfer computes its destination.
type BranchKind uint8

const (
	BranchNone BranchKind = iota
	BranchAbsolute
	BranchRegister
	BranchRelative
)

func (k BranchKind) String() string {
	switch k {
	case BranchNone:
		return "none"
	case BranchAbsolute:
		return "absolute"
	case BranchRegister:
		return "register"
	case BranchRelative:
		return "pc-relative"
	}
	return fmt.Sprintf("BranchKind(%d)", uint8(k))
}

// Branch is the control transfer performed by an instruction, if any.
type Branch struct {
	Kind BranchKind
	// Reg holds the target for BranchRegister.
	Reg Register
	// Target is the resolved absolute destination for BranchAbsolute and
	// BranchRelative.
	Target uint32
	// Link is set for calls.
	Link bool
}

// Mask describes a bitwise clear applied by an instruction to a register,
// writing that same register, or a test of those bits.
type Mask struct {
	Reg Register
	// Value is the literal operand as encoded.
	Value uint32
	// Cleared holds the bits the operation forces to zero.
	Cleared uint32
	// Test marks a comparison that writes only the flags. Reg counts as
	// masked for uses executed under Under, the condition that holds
	// exactly when the Cleared bits are already zero.
	Test  bool
	Under Cond
}

// Instruction is the descriptor produced by a target decoder for one decode
// step. It is immutable once returned.
type Instruction struct {
	Offset int
	Addr   uint32
	Size   int
	Enc    uint32
	Name   string

	Safety Safety
	// Detail explains an unsafe Safety.
	Detail string

	Cond      Cond
	SetsFlags bool
	Defs      RegisterList
	// BoundedDefs is the subset of Defs that only move by a small constant,
	// such as base writeback after push or pop.
	BoundedDefs RegisterList

	Uses   []Use
	Branch Branch
	Mask   *Mask

	// LiteralPool marks the instruction that opens a constant pool when it
	// starts a bundle.
	LiteralPool bool
}

// End returns the offset just past the instruction.
func (i *Instruction) End() int { return i.Offset + i.Size }

// IsControlTransfer reports whether the instruction branches.
func (i *Instruction) IsControlTransfer() bool { return i.Branch.Kind != BranchNone }

func (i *Instruction) String() string {
	return fmt.Sprintf("%#x: %s (%08x, %s)", i.Addr, i.Name, i.Enc, i.Safety)
}
