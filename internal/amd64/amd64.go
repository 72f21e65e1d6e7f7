// Package amd64 contains the x86_64-specific relocation relaxation
// optimisations. These are supposed to be optional for the linker to do, but
// it turns out that libc in some cases won't work unless they're performed:
// it uses GOT relocations in _start, which cannot work in a static-PIE
// binary because dynamic relocations haven't been applied to the GOT yet.
package amd64

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"math"

	"github.com/weldlinker/weld/internal/elfx"
)

// ELFHeaderArchMagic is the e_machine value for x86_64 ELF files.
const ELFHeaderArchMagic = uint16(elf.EM_X86_64)

var pltEntryTemplate = [elfx.PLTEntrySize]byte{
	0xf3, 0x0f, 0x1e, 0xfa, // endbr64
	0xf2, 0xff, 0x25, 0x00, 0x00, 0x00, 0x00, // bnd jmp *{relative GOT address}(%rip)
	0x0f, 0x1f, 0x44, 0x00, 0x00, // nopl 0x0(%rax,%rax,1)
}

// ErrPLTGotTooFar is returned when a PLT entry's rip-relative displacement
// to its GOT slot does not fit in a signed 32-bit field.
var ErrPLTGotTooFar = errors.New("PLT is more than 2GiB away from GOT")

// WritePLTEntry fills entry, which must be exactly PLTEntrySize bytes, with
// a PLT stub that jumps through the GOT slot at gotAddress. pltAddress is
// the address the stub itself will be loaded at.
func WritePLTEntry(entry []byte, gotAddress uint64, pltAddress uint64) error {
	copy(entry, pltEntryTemplate[:])

	// The displacement is relative to the end of the jmp instruction, which
	// sits 0xb bytes into the stub.
	offset := int64(gotAddress - pltAddress - 0xb)
	if offset < math.MinInt32 || offset > math.MaxInt32 {
		return ErrPLTGotTooFar
	}

	binary.LittleEndian.PutUint32(entry[7:11], uint32(int32(offset)))

	return nil
}

// DynamicRelocationType maps the architecture-independent dynamic
// relocation kinds to their x86_64 ELF constants.
func DynamicRelocationType(kind elfx.DynamicRelocationKind) uint32 {
	switch kind {
	case elfx.DynamicRelocationCopy:
		return uint32(elf.R_X86_64_COPY)
	case elfx.DynamicRelocationIrelative:
		return uint32(elf.R_X86_64_IRELATIVE)
	case elfx.DynamicRelocationDtpMod:
		return uint32(elf.R_X86_64_DTPMOD64)
	case elfx.DynamicRelocationDtpOff:
		return uint32(elf.R_X86_64_DTPOFF64)
	case elfx.DynamicRelocationTpOff:
		return uint32(elf.R_X86_64_TPOFF64)
	case elfx.DynamicRelocationRelative:
		return uint32(elf.R_X86_64_RELATIVE)
	case elfx.DynamicRelocationDynamicSymbol:
		return uint32(elf.R_X86_64_GLOB_DAT)
	default:
		panic("unknown dynamic relocation kind")
	}
}

// RelTypeToString returns the standard mnemonic for an x86_64 relocation
// type, for use in diagnostics.
func RelTypeToString(rType uint32) string {
	return elf.R_X86_64(rType).String()
}
