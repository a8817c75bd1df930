package validator

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors returned (wrapped) by decoders.
var (
	ErrInvalidEncoding = errors.New("invalid encoding")
	ErrTruncated       = errors.New("truncated instruction")
)

// Kind classifies a Violation.
type Kind uint8

const (
	InvalidEncoding Kind = iota
	TruncatedInstruction
	BundleCrossing
	TrailingPartialInstruction
	ForbiddenInstruction
	UndefinedInstruction
	UnpredictableInstruction
	UnsafeMemoryReference
	UnsafeControlTransfer
)

var kindNames = [...]string{
	InvalidEncoding:            "InvalidEncoding",
	TruncatedInstruction:       "TruncatedInstruction",
	BundleCrossing:             "BundleCrossing",
	TrailingPartialInstruction: "TrailingPartialInstruction",
	ForbiddenInstruction:       "ForbiddenInstruction",
	UndefinedInstruction:       "UndefinedInstruction",
	UnpredictableInstruction:   "UnpredictableInstruction",
	UnsafeMemoryReference:      "UnsafeMemoryReference",
	UnsafeControlTransfer:      "UnsafeControlTransfer",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// MarshalText lets reports encode kinds by name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Violation is a single rule breach found during validation.
type Violation struct {
	Offset int    `json:"offset"`
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%#04x %s: %s", v.Offset, v.Kind, v.Detail)
}

// violations accumulates findings for one validation run.
type violations []Violation

func (vs *violations) add(off int, kind Kind, format string, args ...any) {
	*vs = append(*vs, Violation{Offset: off, Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

func (vs violations) sorted() []Violation {
	out := make([]Violation, len(vs))
	copy(out, vs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// safetyViolation maps an unsafe classifier verdict onto the taxonomy.
func safetyViolation(inst *Instruction) (Kind, string, bool) {
	detail := inst.Detail
	switch inst.Safety {
	case Safe, ConditionallySafe:
		return 0, "", false
	case Deprecated:
		if detail == "" {
			detail = "deprecated"
		}
		return ForbiddenInstruction, fmt.Sprintf("%s: %s", inst.Name, detail), true
	case Undefined:
		return UndefinedInstruction, withDetail(inst.Name, detail), true
	case Unpredictable:
		return UnpredictableInstruction, withDetail(inst.Name, detail), true
	case Forbidden:
		return ForbiddenInstruction, withDetail(inst.Name, detail), true
	}
	return ForbiddenInstruction, fmt.Sprintf("%s: unknown safety %d", inst.Name, inst.Safety), true
}

func withDetail(name, detail string) string {
	if detail == "" {
		return name
	}
	return name + ": " + detail
}
