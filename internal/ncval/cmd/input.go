package cmd

import (
	"bytes"
	"debug/elf"
	"fmt"
	"os"

	"ncval/internal/cache"
	"ncval/internal/config"
	"ncval/internal/elfx"
	"ncval/internal/validator"
)

const (
	kindRaw = "raw"
	kindELF = "elf"
)

// input is one code image ready for validation.
type input struct {
	Path    string
	Kind    string
	Code    []byte
	Base    uint32
	Digest  cache.Key
	Symbols elfx.Symbols
	Section string
}

// loadInput reads path as an ELF image when it carries the ELF magic and as
// raw code loaded at cfg.Base otherwise.
func loadInput(path string, cfg *config.Config) (*input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	in := &input{Path: path, Digest: cache.Digest(data)}

	if !bytes.HasPrefix(data, []byte(elf.ELFMAG)) {
		in.Kind = kindRaw
		in.Code = data
		in.Base = cfg.Base
		return in, nil
	}

	img, err := elfx.Open(path)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	code, base, err := img.Code()
	if err != nil {
		return nil, err
	}
	in.Kind = kindELF
	in.Code = code
	in.Base = base
	in.Symbols = img.Syms
	in.Section = img.Text.Name
	return in, nil
}

func (in *input) region(cfg *config.Config) validator.Region {
	return cfg.Region(in.Code, in.Base)
}
