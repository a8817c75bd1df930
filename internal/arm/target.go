package arm

import (
	"ncval/internal/validator"
)

// Default sandbox policy.
const (
	DefaultBundleSize = 16
	DefaultDataMask   = 0xC0000000
	DefaultCodeMask   = 0xC000000F
)

// Name identifies the target in configuration and cache keys.
const Name = "arm"

// Policy holds the deployment parameters of the sandbox.
type Policy struct {
	BundleSize int
	DataMask   uint32
	CodeMask   uint32
}

// DefaultPolicy returns the standard 1 GiB sandbox with 16-byte bundles.
func DefaultPolicy() Policy {
	return Policy{
		BundleSize: DefaultBundleSize,
		DataMask:   DefaultDataMask,
		CodeMask:   DefaultCodeMask,
	}
}

// NewTarget returns the validation target for p. The stack pointer and the
// program counter are confined by policy for accesses with immediate
// offsets.
func NewTarget(p Policy) (validator.Target, error) {
	d, err := NewDecoder()
	if err != nil {
		return validator.Target{}, err
	}
	return validator.Target{
		Name:         Name,
		Decoder:      d,
		BundleSize:   p.BundleSize,
		DataMask:     p.DataMask,
		CodeMask:     p.CodeMask,
		Exempt:       validator.Registers(SP, PC),
		RegisterName: RegisterName,
	}, nil
}

// NewValidator is shorthand for NewTarget followed by validator.New.
func NewValidator(p Policy) (*validator.Validator, error) {
	t, err := NewTarget(p)
	if err != nil {
		return nil, err
	}
	return validator.New(t)
}
