// Package elfx opens 32-bit ARM ELF images and locates the executable code
// to validate.
package elfx

import (
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"sort"
	"syscall"

	"github.com/ianlancetaylor/demangle"
)

// ErrNoCode is returned when an image has no executable bytes.
var ErrNoCode = errors.New("no executable segment")

type Image struct {
	Path  string
	File  *elf.File
	All   []byte
	Loads []Seg
	Text  Section
	Syms  Symbols
	f     *os.File
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
}

// Symbol is a function or object symbol with its demangled name.
type Symbol struct {
	Name      string
	Demangled string
	Addr      uint64
	Size      uint64
}

// Label returns the demangled name when there is one.
func (s Symbol) Label() string {
	if s.Demangled != "" {
		return s.Demangled
	}
	return s.Name
}

func Open(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}
	if f.Class != elf.ELFCLASS32 || f.Machine != elf.EM_ARM {
		f.Close()
		return nil, fmt.Errorf("%s: not a 32-bit ARM image (%s, %s)", path, f.Class, f.Machine)
	}

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	im := &Image{Path: path, File: f, All: all, f: of}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  p.Vaddr,
			Off:    p.Off,
			Filesz: p.Filesz,
			Flags:  p.Flags,
		})
	}

	for _, s := range f.Sections {
		if s.Name == ".text" && s.Type == elf.SHT_PROGBITS {
			im.Text = Section{s.Name, s.Addr, s.Offset, s.Size}
		}
	}
	// Stripped images keep only their program headers.
	if im.Text.Size == 0 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}

	im.loadSymbols()
	return im, nil
}

// Close unmaps the memory and closes the underlying files.
func (im *Image) Close() error {
	var err1, err2 error
	if im.All != nil {
		err1 = syscall.Munmap(im.All)
		im.All = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if im.File != nil {
		err3 := im.File.Close()
		if err3 != nil && err2 == nil {
			err2 = err3
		}
		im.File = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// VA2Off translates a virtual address into a file offset
// using PT_LOAD segments. It returns false if VA is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// SliceVA returns a subslice of the mapped file corresponding to the virtual address range [va, va+size).
// It returns (nil, false) if the VA is unmapped or the range is out of bounds.
func (im *Image) SliceVA(va uint64, size uint64) ([]byte, bool) {
	off, ok := im.VA2Off(va)
	if !ok {
		return nil, false
	}
	if size == 0 {
		return []byte{}, true
	}
	end := off + size
	if end > uint64(len(im.All)) {
		return nil, false
	}
	return im.All[off:end], true
}

// Code returns a copy of the executable bytes and their load address. The
// copy stays valid after Close.
func (im *Image) Code() ([]byte, uint32, error) {
	if im.Text.Size == 0 {
		return nil, 0, fmt.Errorf("%s: %w", im.Path, ErrNoCode)
	}
	b, ok := im.SliceVA(im.Text.VA, im.Text.Size)
	if !ok {
		return nil, 0, fmt.Errorf("%s: %s at %#x is outside the file", im.Path, im.Text.Name, im.Text.VA)
	}
	return append([]byte(nil), b...), uint32(im.Text.VA), nil
}

func (im *Image) loadSymbols() {
	// Either table may be missing from a stripped image.
	syms, _ := im.File.Symbols()
	if dyn, err := im.File.DynamicSymbols(); err == nil {
		syms = append(syms, dyn...)
	}

	seen := make(map[uint64]bool)
	for _, sym := range syms {
		t := elf.ST_TYPE(sym.Info)
		if sym.Value == 0 || sym.Name == "" || (t != elf.STT_FUNC && t != elf.STT_OBJECT) {
			continue
		}
		// Thumb functions carry the interworking bit.
		addr := sym.Value &^ 1
		if seen[addr] {
			continue
		}
		seen[addr] = true
		s := Symbol{Name: sym.Name, Addr: addr, Size: sym.Size}
		if d := demangle.Filter(sym.Name); d != sym.Name {
			s.Demangled = d
		}
		im.Syms = append(im.Syms, s)
	}
	sort.Slice(im.Syms, func(i, j int) bool { return im.Syms[i].Addr < im.Syms[j].Addr })
}

// Symbols is a symbol table sorted by address.
type Symbols []Symbol

// At returns the symbol covering va.
func (ss Symbols) At(va uint64) (Symbol, bool) {
	i := sort.Search(len(ss), func(i int) bool { return ss[i].Addr > va }) - 1
	if i < 0 {
		return Symbol{}, false
	}
	s := ss[i]
	if va == s.Addr || va < s.Addr+s.Size {
		return s, true
	}
	return Symbol{}, false
}
