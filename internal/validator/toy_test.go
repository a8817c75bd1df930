package validator

import (
	"encoding/binary"
	"fmt"
)

// A small variable-length instruction set used to exercise the
// architecture-neutral checks.
const (
	opNop    = 0x00 // nop
	opMask   = 0x01 // and r, #imm32
	opLoad   = 0x02 // ld dst, [base]
	opJmp    = 0x03 // jmp r
	opMov    = 0x04 // mov r, #imm8
	opBr     = 0x05 // br rel8
	opLdSP   = 0x06 // ld dst, [sp, #small]
	opForb   = 0x07
	opUndef  = 0x08
	opUnpred = 0x09
	opDepr   = 0x0a
	opPool   = 0x0b // literal pool head
	opFlags  = 0x0c // cmp, sets flags
	opCMask  = 0x0d // and<cond> r, #imm32
	opCLoad  = 0x0e // ld<cond> dst, [base]
	opPush   = 0x0f // push, bounded sp update
	opCall   = 0x10 // call rel8
	opBad    = 0xff
)

const toySP Register = 13

var toyLen = map[byte]int{
	opNop: 1, opMask: 6, opLoad: 3, opJmp: 2, opMov: 3, opBr: 2, opLdSP: 2,
	opForb: 1, opUndef: 1, opUnpred: 1, opDepr: 1, opPool: 4, opFlags: 1,
	opCMask: 7, opCLoad: 4, opPush: 1, opCall: 2,
}

type toyDecoder struct{}

func (toyDecoder) Alignment() int { return 1 }

func (toyDecoder) Decode(code []byte, off int, addr uint32) (Instruction, error) {
	op := code[off]
	n, ok := toyLen[op]
	if !ok {
		return Instruction{}, fmt.Errorf("%w: opcode %#02x", ErrInvalidEncoding, op)
	}
	if off+n > len(code) {
		return Instruction{}, fmt.Errorf("%w: opcode %#02x needs %d bytes", ErrTruncated, op, n)
	}
	b := code[off : off+n]
	inst := Instruction{Offset: off, Addr: addr, Size: n, Enc: uint32(op), Cond: CondAlways}
	switch op {
	case opNop:
		inst.Name = "nop"
	case opMask:
		r, imm := Register(b[1]), binary.LittleEndian.Uint32(b[2:])
		inst.Name = "and"
		inst.Defs = Registers(r)
		inst.Mask = &Mask{Reg: r, Value: imm, Cleared: imm}
	case opCMask:
		r, imm := Register(b[2]), binary.LittleEndian.Uint32(b[3:])
		inst.Name = "and.c"
		inst.Cond = Cond(b[1])
		inst.Defs = Registers(r)
		inst.Mask = &Mask{Reg: r, Value: imm, Cleared: imm}
	case opLoad:
		inst.Name = "ld"
		inst.Safety = ConditionallySafe
		inst.Uses = []Use{{Reg: Register(b[1]), Role: RoleMemoryBase}}
		inst.Defs = Registers(Register(b[2]))
	case opCLoad:
		inst.Name = "ld.c"
		inst.Cond = Cond(b[1])
		inst.Safety = ConditionallySafe
		inst.Uses = []Use{{Reg: Register(b[2]), Role: RoleMemoryBase}}
		inst.Defs = Registers(Register(b[3]))
	case opLdSP:
		inst.Name = "ld.sp"
		inst.Safety = ConditionallySafe
		inst.Uses = []Use{{Reg: toySP, Role: RoleMemoryBase, Bounded: true}}
		inst.Defs = Registers(Register(b[1]))
	case opJmp:
		inst.Name = "jmp"
		inst.Safety = ConditionallySafe
		inst.Uses = []Use{{Reg: Register(b[1]), Role: RoleBranchTarget}}
		inst.Branch = Branch{Kind: BranchRegister, Reg: Register(b[1])}
	case opMov:
		inst.Name = "mov"
		inst.Defs = Registers(Register(b[1]))
	case opBr:
		inst.Name = "br"
		inst.Branch = Branch{Kind: BranchRelative, Target: addr + 2 + uint32(int32(int8(b[1])))}
	case opCall:
		inst.Name = "call"
		inst.Branch = Branch{Kind: BranchRelative, Target: addr + 2 + uint32(int32(int8(b[1]))), Link: true}
	case opForb:
		inst.Name, inst.Safety = "svc", Forbidden
	case opUndef:
		inst.Name, inst.Safety = "udf", Undefined
	case opUnpred:
		inst.Name, inst.Safety = "weird", Unpredictable
	case opDepr:
		inst.Name, inst.Safety = "swp", Deprecated
	case opPool:
		inst.Name = "pool"
		inst.LiteralPool = true
	case opFlags:
		inst.Name = "cmp"
		inst.SetsFlags = true
	case opPush:
		inst.Name = "push"
		inst.Defs = Registers(toySP)
		inst.BoundedDefs = Registers(toySP)
	}
	return inst, nil
}

const (
	toyBundle   = 16
	toyDataMask = 0xC0000000
	toyCodeMask = 0xC000000F
	toyBase     = 0x10000
)

func toyTarget() Target {
	return Target{
		Name:       "toy",
		Decoder:    toyDecoder{},
		BundleSize: toyBundle,
		DataMask:   toyDataMask,
		CodeMask:   toyCodeMask,
		Exempt:     Registers(toySP),
	}
}

func mask(r Register, imm uint32) []byte {
	b := []byte{opMask, byte(r), 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(b[2:], imm)
	return b
}

func cmask(c Cond, r Register, imm uint32) []byte {
	b := []byte{opCMask, byte(c), byte(r), 0, 0, 0, 0}
	binary.LittleEndian.PutUint32(b[3:], imm)
	return b
}

func load(base, dst Register) []byte { return []byte{opLoad, byte(base), byte(dst)} }
func cload(c Cond, base, dst Register) []byte { return []byte{opCLoad, byte(c), byte(base), byte(dst)} }
func ldsp(dst Register) []byte { return []byte{opLdSP, byte(dst)} }
func jmp(r Register) []byte { return []byte{opJmp, byte(r)} }
func mov(r Register, v byte) []byte { return []byte{opMov, byte(r), v} }
func br(rel int8) []byte { return []byte{opBr, byte(rel)} }
func call(rel int8) []byte { return []byte{opCall, byte(rel)} }
func op(b ...byte) []byte { return b }

// bundle concatenates parts and pads the result with nops to a whole bundle.
func bundle(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	for len(out)%toyBundle != 0 {
		out = append(out, opNop)
	}
	return out
}

func program(bundles ...[]byte) []byte {
	var out []byte
	for _, b := range bundles {
		out = append(out, b...)
	}
	return out
}
