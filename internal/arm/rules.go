package arm

import "ncval/internal/dtable"

// class selects how the classifier interprets an encoding.
type class int

const (
	classForbidden class = iota
	classUndefined
	classDeprecated
	classRegisterOffset
	classSafe

	classPreload
	classNeonLoadStore

	classBreakpoint
	classMRS
	classMSRReg
	classMSRImm
	classBranchExchange
	classDefsRd12
	classDefsRd16
	classMulHalf
	classMultiply
	classLoadExclusive
	classStoreExclusive
	classExtraLoadStore
	classDataProcRegShift
	classDataProcReg
	classDataProcImm
	classMoveWide

	classLoadStore
	classMediaLong
	classBitfieldClear
	classBlockTransfer
	classBranch

	classVFPLoadStore
	classVMOV64
	classVFPBlock
	classVMRS
	classVMSR
	classVFPTransfer
)

var classNames = [...]string{
	classForbidden:        "forbidden",
	classUndefined:        "undefined",
	classDeprecated:       "deprecated",
	classRegisterOffset:   "register-offset",
	classSafe:             "safe",
	classPreload:          "preload",
	classNeonLoadStore:    "neon-load-store",
	classBreakpoint:       "breakpoint",
	classMRS:              "mrs",
	classMSRReg:           "msr-reg",
	classMSRImm:           "msr-imm",
	classBranchExchange:   "branch-exchange",
	classDefsRd12:         "defs-rd12",
	classDefsRd16:         "defs-rd16",
	classMulHalf:          "multiply-halfword",
	classMultiply:         "multiply",
	classLoadExclusive:    "load-exclusive",
	classStoreExclusive:   "store-exclusive",
	classExtraLoadStore:   "extra-load-store",
	classDataProcRegShift: "dp-reg-shifted",
	classDataProcReg:      "dp-reg",
	classDataProcImm:      "dp-imm",
	classMoveWide:         "move-wide",
	classLoadStore:        "load-store",
	classMediaLong:        "media-long",
	classBitfieldClear:    "bitfield-clear",
	classBlockTransfer:    "block-transfer",
	classBranch:           "branch",
	classVFPLoadStore:     "vfp-load-store",
	classVMOV64:           "vmov-64",
	classVFPBlock:         "vfp-block",
	classVMRS:             "vmrs",
	classVMSR:             "vmsr",
	classVFPTransfer:      "vfp-transfer",
}

func (c class) String() string {
	if c >= 0 && int(c) < len(classNames) {
		return classNames[c]
	}
	return "unknown"
}

// Rules is the A32 rule set in priority order. The unconditional space
// (condition 1111) comes first so that the conditional rules below may
// leave the condition field as a wildcard.
var Rules = []dtable.Rule{
	// Unconditional space.
	{Bits: "1111 0101 x101 xxxx 1111 xxxx xxxx xxxx", Class: int(classPreload), Name: "pld"},
	{Bits: "1111 0100 x101 xxxx 1111 xxxx xxxx xxxx", Class: int(classPreload), Name: "pli"},
	{Bits: "1111 0111 xx01 xxxx 1111 xxxx xxx0 xxxx", Class: int(classRegisterOffset), Name: "pld"},
	{Bits: "1111 0110 x101 xxxx 1111 xxxx xxx0 xxxx", Class: int(classRegisterOffset), Name: "pli"},
	{Bits: "1111 0101 0111 1111 1111 0000 0001 1111", Class: int(classSafe), Name: "clrex"},
	{Bits: "1111 0101 0111 1111 1111 0000 0100 xxxx", Class: int(classSafe), Name: "dsb"},
	{Bits: "1111 0101 0111 1111 1111 0000 0101 xxxx", Class: int(classSafe), Name: "dmb"},
	{Bits: "1111 0101 0111 1111 1111 0000 0110 xxxx", Class: int(classSafe), Name: "isb"},
	{Bits: "1111 001x xxxx xxxx xxxx xxxx xxxx xxxx", Class: int(classSafe), Name: "neon"},
	{Bits: "1111 0100 xxx0 xxxx xxxx xxxx xxxx xxxx", Class: int(classNeonLoadStore), Name: "vld/vst"},
	{Bits: "1111 101x xxxx xxxx xxxx xxxx xxxx xxxx", Class: int(classForbidden), Name: "blx"},
	{Bits: "1111 xxxx xxxx xxxx xxxx xxxx xxxx xxxx", Class: int(classForbidden), Name: "unconditional"},

	// Miscellaneous instructions.
	{Bits: "xxxx 0001 0010 xxxx xxxx xxxx 0111 xxxx", Class: int(classBreakpoint), Name: "bkpt"},
	{Bits: "xxxx 0001 0100 xxxx xxxx xxxx 0111 xxxx", Class: int(classForbidden), Name: "hvc"},
	{Bits: "xxxx 0001 0110 xxxx xxxx xxxx 0111 xxxx", Class: int(classForbidden), Name: "smc"},
	{Bits: "xxxx 0001 0110 xxxx xxxx xxxx 0110 xxxx", Class: int(classForbidden), Name: "eret"},
	{Bits: "xxxx 0001 0000 1111 xxxx 0000 0000 0000", Class: int(classMRS), Name: "mrs"},
	{Bits: "xxxx 0001 0010 xx00 1111 0000 0000 xxxx", Class: int(classMSRReg), Name: "msr"},
	{Bits: "xxxx 0001 0010 xxxx xxxx xxxx 0001 xxxx", Class: int(classBranchExchange), Name: "bx"},
	{Bits: "xxxx 0001 0010 xxxx xxxx xxxx 0010 xxxx", Class: int(classForbidden), Name: "bxj"},
	{Bits: "xxxx 0001 0010 xxxx xxxx xxxx 0011 xxxx", Class: int(classBranchExchange), Name: "blx"},
	{Bits: "xxxx 0001 0110 xxxx xxxx xxxx 0001 xxxx", Class: int(classDefsRd12), Name: "clz"},
	{Bits: "xxxx 0001 0xx0 xxxx xxxx xxxx 0101 xxxx", Class: int(classDefsRd12), Name: "qadd/qsub"},
	{Bits: "xxxx 0001 0xx0 xxxx xxxx xxxx 1xx0 xxxx", Class: int(classMulHalf), Name: "smulxy"},
	{Bits: "xxxx 0001 0xx0 xxxx xxxx xxxx 0xxx xxxx", Class: int(classForbidden), Name: "system"},

	// Hints, status register writes and wide moves.
	{Bits: "xxxx 0011 0010 0000 xxxx xxxx 0000 0000", Class: int(classSafe), Name: "nop"},
	{Bits: "xxxx 0011 0010 0000 xxxx xxxx 0000 0001", Class: int(classSafe), Name: "yield"},
	{Bits: "xxxx 0011 0010 0000 xxxx xxxx xxxx xxxx", Class: int(classForbidden), Name: "hint"},
	{Bits: "xxxx 0011 0010 xx00 xxxx xxxx xxxx xxxx", Class: int(classMSRImm), Name: "msr"},
	{Bits: "xxxx 0011 0x10 xxxx xxxx xxxx xxxx xxxx", Class: int(classForbidden), Name: "msr"},
	{Bits: "xxxx 0011 0000 xxxx xxxx xxxx xxxx xxxx", Class: int(classMoveWide), Name: "movw"},
	{Bits: "xxxx 0011 0100 xxxx xxxx xxxx xxxx xxxx", Class: int(classMoveWide), Name: "movt"},

	// Multiplies and synchronisation primitives.
	{Bits: "xxxx 0000 xxxx xxxx xxxx xxxx 1001 xxxx", Class: int(classMultiply), Name: "mul"},
	{Bits: "xxxx 0001 0x00 xxxx xxxx xxxx 1001 xxxx", Class: int(classDeprecated), Name: "swp"},
	{Bits: "xxxx 0001 1xx1 xxxx xxxx xxxx 1001 xxxx", Class: int(classLoadExclusive), Name: "ldrex"},
	{Bits: "xxxx 0001 1xx0 xxxx xxxx xxxx 1001 xxxx", Class: int(classStoreExclusive), Name: "strex"},
	{Bits: "xxxx 0001 xxxx xxxx xxxx xxxx 1001 xxxx", Class: int(classUndefined), Name: "sync"},

	// Extra load/store and data processing.
	{Bits: "xxxx 000x x0xx xxxx xxxx xxxx 1xx1 xxxx", Class: int(classRegisterOffset), Name: "ldrh/strh"},
	{Bits: "xxxx 000x x1xx xxxx xxxx xxxx 1xx1 xxxx", Class: int(classExtraLoadStore), Name: "ldrh/strh"},
	{Bits: "xxxx 000x xxxx xxxx xxxx xxxx 0xx1 xxxx", Class: int(classDataProcRegShift), Name: "dp"},
	{Bits: "xxxx 000x xxxx xxxx xxxx xxxx xxx0 xxxx", Class: int(classDataProcReg), Name: "dp"},
	{Bits: "xxxx 001x xxxx xxxx xxxx xxxx xxxx xxxx", Class: int(classDataProcImm), Name: "dp"},

	// Word and byte load/store.
	{Bits: "xxxx 010x xxxx xxxx xxxx xxxx xxxx xxxx", Class: int(classLoadStore), Name: "ldr/str"},
	{Bits: "xxxx 011x xxxx xxxx xxxx xxxx xxx0 xxxx", Class: int(classRegisterOffset), Name: "ldr/str"},

	// Media instructions.
	{Bits: "xxxx 0111 1111 xxxx xxxx xxxx 1111 xxxx", Class: int(classUndefined), Name: "udf"},
	{Bits: "xxxx 0110 xxxx xxxx xxxx xxxx xxx1 xxxx", Class: int(classDefsRd12), Name: "media"},
	{Bits: "xxxx 0111 0100 xxxx xxxx xxxx xxx1 xxxx", Class: int(classMediaLong), Name: "smlald"},
	{Bits: "xxxx 0111 0xxx xxxx xxxx xxxx xxx1 xxxx", Class: int(classDefsRd16), Name: "smlad/sdiv"},
	{Bits: "xxxx 0111 1000 xxxx xxxx xxxx 0001 xxxx", Class: int(classDefsRd16), Name: "usad8"},
	{Bits: "xxxx 0111 110x xxxx xxxx xxxx x001 1111", Class: int(classBitfieldClear), Name: "bfc"},
	{Bits: "xxxx 0111 110x xxxx xxxx xxxx x001 xxxx", Class: int(classDefsRd12), Name: "bfi"},
	{Bits: "xxxx 0111 1x1x xxxx xxxx xxxx x101 xxxx", Class: int(classDefsRd12), Name: "sbfx/ubfx"},
	{Bits: "xxxx 011x xxxx xxxx xxxx xxxx xxx1 xxxx", Class: int(classUndefined), Name: "media"},

	// Branches and block transfers.
	{Bits: "xxxx 100x xxxx xxxx xxxx xxxx xxxx xxxx", Class: int(classBlockTransfer), Name: "ldm/stm"},
	{Bits: "xxxx 101x xxxx xxxx xxxx xxxx xxxx xxxx", Class: int(classBranch), Name: "b"},

	// Coprocessor space.
	{Bits: "xxxx 1111 xxxx xxxx xxxx xxxx xxxx xxxx", Class: int(classForbidden), Name: "svc"},
	{Bits: "xxxx 1101 xx0x xxxx xxxx 101x xxxx xxxx", Class: int(classVFPLoadStore), Name: "vldr/vstr"},
	{Bits: "xxxx 1100 010x xxxx xxxx 101x xxxx xxxx", Class: int(classVMOV64), Name: "vmov"},
	{Bits: "xxxx 110x xxxx xxxx xxxx 101x xxxx xxxx", Class: int(classVFPBlock), Name: "vldm/vstm"},
	{Bits: "xxxx 1110 xxxx xxxx xxxx 101x xxx0 xxxx", Class: int(classSafe), Name: "vfp"},
	{Bits: "xxxx 1110 1111 0001 xxxx 1010 xxx1 xxxx", Class: int(classVMRS), Name: "vmrs"},
	{Bits: "xxxx 1110 1110 0001 xxxx 1010 xxx1 xxxx", Class: int(classVMSR), Name: "vmsr"},
	{Bits: "xxxx 1110 111x xxxx xxxx 1010 xxx1 xxxx", Class: int(classForbidden), Name: "vmrs/vmsr"},
	{Bits: "xxxx 1110 xxxx xxxx xxxx 101x xxx1 xxxx", Class: int(classVFPTransfer), Name: "vmov"},
	{Bits: "xxxx 11xx xxxx xxxx xxxx xxxx xxxx xxxx", Class: int(classForbidden), Name: "coprocessor"},
}
