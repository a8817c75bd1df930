package arm

import (
	"fmt"

	"ncval/internal/dtable"
	"ncval/internal/validator"
)

// LiteralPoolHead is the bkpt immediate that marks the start of a constant
// pool occupying the rest of its bundle.
const LiteralPoolHead = 0x7777

var dpNames = [16]string{
	"and", "eor", "sub", "rsb", "add", "adc", "sbc", "rsc",
	"tst", "teq", "cmp", "cmn", "orr", "mov", "bic", "mvn",
}

const (
	dpAND = 0x0
	dpTST = 0x8
	dpBIC = 0xe
)

var blockModes = [4]string{"da", "ia", "db", "ib"}

// classify computes the safety verdict and effects of w, which the decision
// table matched to rule r.
func classify(w, addr uint32, r dtable.Rule) validator.Instruction {
	inst := validator.Instruction{
		Addr: addr,
		Size: 4,
		Enc:  w,
		Name: r.Name,
		Cond: validator.CondAlways,
	}
	if c := cond(w); c != condUnconditional {
		inst.Cond = c
	}

	switch class(r.Class) {
	case classForbidden:
		forbid(&inst, "not permitted in untrusted code")
	case classUndefined:
		inst.Safety = validator.Undefined
	case classDeprecated:
		inst.Safety = validator.Deprecated
		inst.Detail = "deprecated"
	case classRegisterOffset:
		forbid(&inst, "register-offset addressing")
	case classSafe:
	case classPreload:
		memUse(&inst, rn(w))
	case classNeonLoadStore:
		neonLoadStore(&inst, w)
	case classBreakpoint:
		breakpoint(&inst, w)
	case classMRS:
		defRd(&inst, rd(w))
	case classMSRReg:
		if field(w, 19, 18) == 0 || rm(w) == PC {
			unpredictable(&inst, "msr with empty mask or pc source")
		}
		inst.SetsFlags = bit(w, 19)
	case classMSRImm:
		inst.SetsFlags = bit(w, 19)
	case classBranchExchange:
		branchExchange(&inst, w)
	case classDefsRd12:
		defRd(&inst, rd(w))
	case classDefsRd16:
		defRd(&inst, rn(w))
	case classMulHalf:
		mulHalf(&inst, w)
	case classMultiply:
		multiply(&inst, w)
	case classLoadExclusive:
		loadExclusive(&inst, w)
	case classStoreExclusive:
		storeExclusive(&inst, w)
	case classExtraLoadStore:
		extraLoadStore(&inst, w)
	case classDataProcRegShift:
		if anyPC(rd(w), rn(w), rs(w), rm(w)) {
			unpredictable(&inst, "register-shifted operand uses pc")
		}
		dataProc(&inst, w)
	case classDataProcReg:
		dataProc(&inst, w)
	case classDataProcImm:
		dataProc(&inst, w)
		maskImm(&inst, w)
	case classMoveWide:
		defRd(&inst, rd(w))
	case classLoadStore:
		loadStore(&inst, w)
	case classMediaLong:
		if anyPC(rn(w), rd(w), rs(w), rm(w)) || rn(w) == rd(w) {
			unpredictable(&inst, "bad register combination")
		}
		def(&inst, rn(w), rd(w))
	case classBitfieldClear:
		bitfieldClear(&inst, w)
	case classBlockTransfer:
		blockTransfer(&inst, w)
	case classBranch:
		branch(&inst, w, addr)
	case classVFPLoadStore:
		inst.Name = "vstr"
		if bit(w, 20) {
			inst.Name = "vldr"
		} else if rn(w) == PC {
			forbid(&inst, "store relative to pc")
		}
		memUse(&inst, rn(w))
	case classVMOV64:
		t, t2 := rd(w), rn(w)
		if anyPC(t, t2) {
			unpredictable(&inst, "pc transfer")
		}
		if bit(w, 20) {
			if t == t2 {
				unpredictable(&inst, "same destination register twice")
			}
			def(&inst, t, t2)
		}
	case classVFPBlock:
		vfpBlock(&inst, w)
	case classVMRS:
		if rd(w) == PC {
			inst.Name = "vmrs apsr_nzcv"
			inst.SetsFlags = true
		} else {
			def(&inst, rd(w))
		}
	case classVMSR:
		if rd(w) == PC {
			unpredictable(&inst, "pc source")
		}
	case classVFPTransfer:
		if rd(w) == PC {
			unpredictable(&inst, "pc transfer")
		}
		if bit(w, 20) {
			def(&inst, rd(w))
		}
	default:
		forbid(&inst, fmt.Sprintf("unhandled class %v", class(r.Class)))
	}

	if inst.Safety == validator.Safe && len(inst.Uses) > 0 {
		inst.Safety = validator.ConditionallySafe
	}
	return inst
}

// worse records a verdict unless a more severe one is already set.
func worse(inst *validator.Instruction, s validator.Safety, detail string) {
	if s > inst.Safety {
		inst.Safety, inst.Detail = s, detail
	}
}

func forbid(inst *validator.Instruction, detail string) {
	worse(inst, validator.Forbidden, detail)
}

func unpredictable(inst *validator.Instruction, detail string) {
	worse(inst, validator.Unpredictable, detail)
}

func def(inst *validator.Instruction, regs ...validator.Register) {
	inst.Defs = inst.Defs.Union(validator.Registers(regs...))
}

// boundedDef records a base register writeback by a small constant.
func boundedDef(inst *validator.Instruction, r validator.Register) {
	def(inst, r)
	inst.BoundedDefs = inst.BoundedDefs.Add(r)
}

func defRd(inst *validator.Instruction, d validator.Register) {
	if d == PC {
		unpredictable(inst, "pc destination")
		return
	}
	def(inst, d)
}

// memUse records base as the base of an access with a small immediate
// offset.
func memUse(inst *validator.Instruction, base validator.Register) {
	inst.Uses = append(inst.Uses, validator.Use{Reg: base, Role: validator.RoleMemoryBase, Bounded: true})
}

func breakpoint(inst *validator.Instruction, w uint32) {
	if inst.Cond != validator.CondAlways {
		unpredictable(inst, "conditional bkpt")
		return
	}
	if field(w, 19, 8)<<4|field(w, 3, 0) == LiteralPoolHead {
		inst.LiteralPool = true
	}
}

func branchExchange(inst *validator.Instruction, w uint32) {
	if field(w, 19, 8) != 0xfff {
		unpredictable(inst, "should-be-one bits clear")
	}
	m := rm(w)
	link := bit(w, 5)
	inst.Branch = validator.Branch{Kind: validator.BranchRegister, Reg: m, Link: link}
	inst.Uses = append(inst.Uses, validator.Use{Reg: m, Role: validator.RoleBranchTarget})
	if link {
		if m == PC {
			unpredictable(inst, "blx pc")
		}
		def(inst, LR)
	}
}

func mulHalf(inst *validator.Instruction, w uint32) {
	op := field(w, 22, 21)
	accumulates := op != 3
	if anyPC(rn(w), rs(w), rm(w)) || (accumulates && rd(w) == PC) {
		unpredictable(inst, "pc operand")
	}
	def(inst, rn(w))
	if op == 2 {
		def(inst, rd(w))
	}
}

func multiply(inst *validator.Instruction, w uint32) {
	op := field(w, 23, 21)
	s := bit(w, 20)
	hi, lo := rn(w), rd(w)
	usesLo := true
	switch op {
	case 0:
		inst.Name, usesLo = "mul", false
	case 1:
		inst.Name = "mla"
	case 2:
		if s {
			inst.Safety = validator.Undefined
			return
		}
		inst.Name = "umaal"
	case 3:
		if s {
			inst.Safety = validator.Undefined
			return
		}
		inst.Name = "mls"
	default:
		inst.Name = [4]string{"umull", "umlal", "smull", "smlal"}[op-4]
	}
	if s {
		inst.Name += "s"
		inst.SetsFlags = true
	}
	if anyPC(hi, rs(w), rm(w)) || (usesLo && lo == PC) {
		unpredictable(inst, "pc operand")
	}
	def(inst, hi)
	if op == 2 || op >= 4 {
		if hi == lo {
			unpredictable(inst, "same destination register twice")
		}
		def(inst, lo)
	}
}

func loadExclusive(inst *validator.Instruction, w uint32) {
	op := field(w, 22, 21)
	inst.Name = [4]string{"ldrex", "ldrexd", "ldrexb", "ldrexh"}[op]
	t, n := rd(w), rn(w)
	if anyPC(t, n) {
		unpredictable(inst, "pc operand")
	}
	def(inst, t)
	if op == 1 {
		if t%2 == 1 || t == LR {
			unpredictable(inst, "odd or lr first register")
		}
		def(inst, t+1)
	}
	memUse(inst, n)
}

func storeExclusive(inst *validator.Instruction, w uint32) {
	op := field(w, 22, 21)
	inst.Name = [4]string{"strex", "strexd", "strexb", "strexh"}[op]
	d, t, n := rd(w), rm(w), rn(w)
	if anyPC(d, t, n) || d == n || d == t {
		unpredictable(inst, "bad register combination")
	}
	if op == 1 && (t%2 == 1 || t == LR) {
		unpredictable(inst, "odd or lr first register")
	}
	def(inst, d)
	memUse(inst, n)
}

// extraLoadStore handles the halfword, signed byte and doubleword forms
// with an 8-bit immediate offset.
func extraLoadStore(inst *validator.Instruction, w uint32) {
	p, wb, l := bit(w, 24), bit(w, 21), bit(w, 20)
	op2 := field(w, 6, 5)
	n, t := rn(w), rd(w)
	if l {
		inst.Name = [4]string{"", "ldrh", "ldrsb", "ldrsh"}[op2]
	} else {
		inst.Name = [4]string{"", "strh", "ldrd", "strd"}[op2]
	}
	if !p && wb {
		forbid(inst, "unprivileged access")
		return
	}
	dual := !l && op2 != 1
	load := l || op2 == 2
	writeback := !p || wb

	if dual && (t%2 == 1 || t == LR) {
		unpredictable(inst, "odd or lr first register")
	}
	if load {
		if t == PC {
			unpredictable(inst, "load into pc")
		}
		def(inst, t)
		if dual {
			def(inst, t+1)
		}
	} else if t == PC {
		unpredictable(inst, "store of pc")
	}
	if n == PC {
		if writeback {
			unpredictable(inst, "pc writeback")
		}
		if !load {
			forbid(inst, "store relative to pc")
		}
	}
	if writeback {
		if n == t || (dual && n == t+1) {
			unpredictable(inst, "writeback to transferred register")
		}
		boundedDef(inst, n)
	}
	memUse(inst, n)
}

func dataProc(inst *validator.Instruction, w uint32) {
	op := field(w, 24, 21)
	s := bit(w, 20)
	test := op >= 8 && op <= 11
	inst.Name = dpNames[op]
	if s && !test {
		inst.Name += "s"
	}
	inst.SetsFlags = s
	if test {
		return
	}
	if rd(w) == PC {
		forbid(inst, "data processing writes pc")
		return
	}
	def(inst, rd(w))
}

// maskImm recognises bic rN, rN, #imm and and rN, rN, #imm, and the
// tst rN, #imm guard whose eq-conditional successors see rN with the
// tested bits clear.
func maskImm(inst *validator.Instruction, w uint32) {
	op := field(w, 24, 21)
	if op == dpTST && bit(w, 20) {
		if n := rn(w); n != PC {
			inst.Mask = &validator.Mask{Reg: n, Value: expandImm(field(w, 11, 0)), Test: true, Under: condEQ}
			inst.Mask.Cleared = inst.Mask.Value
		}
		return
	}
	if op != dpAND && op != dpBIC {
		return
	}
	d := rd(w)
	if d != rn(w) || d == PC {
		return
	}
	imm := expandImm(field(w, 11, 0))
	cleared := imm
	if op == dpAND {
		cleared = ^imm
	}
	inst.Mask = &validator.Mask{Reg: d, Value: imm, Cleared: cleared}
}

func loadStore(inst *validator.Instruction, w uint32) {
	p, b, wb, l := bit(w, 24), bit(w, 22), bit(w, 21), bit(w, 20)
	n, t := rn(w), rd(w)
	inst.Name = "str"
	if l {
		inst.Name = "ldr"
	}
	if b {
		inst.Name += "b"
	}
	if !p && wb {
		forbid(inst, "unprivileged access")
		return
	}
	writeback := !p || wb
	if l {
		if t == PC {
			forbid(inst, "load into pc")
		} else {
			def(inst, t)
		}
	} else if b && t == PC {
		unpredictable(inst, "byte store of pc")
	}
	if n == PC {
		if writeback {
			unpredictable(inst, "pc writeback")
		}
		if !l {
			forbid(inst, "store relative to pc")
		}
	}
	if writeback {
		if n == t {
			unpredictable(inst, "writeback to transferred register")
		}
		boundedDef(inst, n)
	}
	memUse(inst, n)
}

func bitfieldClear(inst *validator.Instruction, w uint32) {
	d := rd(w)
	lsb, msb := field(w, 11, 7), field(w, 20, 16)
	if d == PC || msb < lsb {
		unpredictable(inst, "bad bitfield")
		return
	}
	cleared := uint32((uint64(1)<<(msb-lsb+1) - 1) << lsb)
	def(inst, d)
	inst.Mask = &validator.Mask{Reg: d, Value: cleared, Cleared: cleared}
}

func blockTransfer(inst *validator.Instruction, w uint32) {
	s, wb, l := bit(w, 22), bit(w, 21), bit(w, 20)
	n := rn(w)
	list := validator.RegisterList(field(w, 15, 0))
	mode := field(w, 24, 23)

	inst.Name = "stm" + blockModes[mode]
	if l {
		inst.Name = "ldm" + blockModes[mode]
	}
	switch {
	case n == SP && wb && l && mode == 1:
		inst.Name = "pop"
	case n == SP && wb && !l && mode == 2:
		inst.Name = "push"
	}

	if s {
		forbid(inst, "user registers or exception return")
		return
	}
	if list.Empty() || n == PC {
		unpredictable(inst, "empty list or pc base")
	}
	if l {
		if list.Contains(PC) {
			forbid(inst, "loads pc")
		}
		if wb && list.Contains(n) {
			unpredictable(inst, "writeback to loaded base")
		}
		inst.Defs = inst.Defs.Union(list.Remove(PC))
	}
	if wb {
		boundedDef(inst, n)
	}
	memUse(inst, n)
}

func branch(inst *validator.Instruction, w, addr uint32) {
	off := signExtend(field(w, 23, 0)<<2, 26)
	link := bit(w, 24)
	inst.Branch = validator.Branch{
		Kind:   validator.BranchRelative,
		Target: addr + 8 + uint32(off),
		Link:   link,
	}
	if link {
		inst.Name = "bl"
		def(inst, LR)
	}
}

func vfpBlock(inst *validator.Instruction, w uint32) {
	p, u, wb, l := bit(w, 24), bit(w, 23), bit(w, 21), bit(w, 20)
	n := rn(w)
	if p == u {
		inst.Safety = validator.Undefined
		return
	}
	inst.Name = "vstm"
	if l {
		inst.Name = "vldm"
	}
	switch {
	case n == SP && wb && l && !p:
		inst.Name = "vpop"
	case n == SP && wb && !l && p:
		inst.Name = "vpush"
	}
	if field(w, 7, 0) == 0 {
		unpredictable(inst, "empty register list")
	}
	if n == PC {
		if wb {
			unpredictable(inst, "pc writeback")
		}
		if !l {
			forbid(inst, "store relative to pc")
		}
	}
	if wb {
		boundedDef(inst, n)
	}
	memUse(inst, n)
}

func neonLoadStore(inst *validator.Instruction, w uint32) {
	n, m := rn(w), rm(w)
	inst.Name = "vst"
	if bit(w, 21) {
		inst.Name = "vld"
	}
	if n == PC {
		unpredictable(inst, "pc base")
	}
	switch m {
	case PC:
	case SP:
		boundedDef(inst, n)
	default:
		// Post-indexed by a register.
		def(inst, n)
	}
	memUse(inst, n)
}
