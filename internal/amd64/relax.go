package amd64

import (
	"debug/elf"
	"fmt"

	"github.com/weldlinker/weld/internal/elfx"
	"github.com/weldlinker/weld/internal/output"
	"github.com/weldlinker/weld/internal/resolution"
)

// Relaxation pairs a chosen instruction rewrite with the relocation type
// that must be applied in place of the original one.
type Relaxation struct {
	kind    RelaxationKind
	relInfo elfx.RelocationKindInfo
}

func newRelaxation(kind RelaxationKind, newRType uint32) *Relaxation {
	relInfo, err := RelocationFromRaw(newRType)
	if err != nil {
		// The relaxation table only ever references relocation types we
		// support; hitting this means the table itself is wrong.
		panic(fmt.Sprintf("relaxation produced relocation type we can't handle: %v", err))
	}

	return &Relaxation{kind: kind, relInfo: relInfo}
}

// Kind returns the instruction rewrite this relaxation performs.
func (r *Relaxation) Kind() RelaxationKind {
	return r.kind
}

// RelInfo returns the replacement relocation, which the writer must apply
// instead of the original one.
func (r *Relaxation) RelInfo() elfx.RelocationKindInfo {
	return r.relInfo
}

// NewRelaxation decides whether the relocation at offsetInSection can be
// rewritten into a cheaper form, given the instruction bytes around it and
// what the resolver knows about the target symbol. A nil return means the
// relocation must be applied unchanged. sectionBytes is not modified.
//
// The offset points at the 4-byte relocation slot, so the opcode bytes of
// the instruction being considered sit immediately before it.
func NewRelaxation(
	relocationKind uint32,
	sectionBytes []byte,
	offsetInSection uint64,
	flags resolution.ValueFlags,
	out output.Kind,
	sectionFlags elfx.SectionFlags,
) *Relaxation {
	isKnownAddress := flags.Has(resolution.FlagAddress)
	isAbsolute := flags.Has(resolution.FlagAbsolute) && !flags.Has(resolution.FlagDynamic)
	nonRelocatable := !out.IsRelocatable()
	isAbsoluteAddress := isKnownAddress && nonRelocatable
	canBypassGot := flags.Has(resolution.FlagCanBypassGot)

	// IFuncs cannot be referenced directly; they always need to go via the
	// GOT. So if we've got say a PLT32 relocation, we don't want to relax it
	// even in a static executable. Furthermore, if we encounter a relocation
	// like PC32 to an ifunc, we need to change it so that it goes via the
	// GOT. This is kind of the opposite of relaxation.
	if flags.Has(resolution.FlagIFunc) {
		if relocationKind == uint32(elf.R_X86_64_PC32) {
			return newRelaxation(RelaxNoOp, uint32(elf.R_X86_64_PLT32))
		}

		return nil
	}

	// All relaxations below only apply to executable code, so we shouldn't
	// attempt them if the relocation is in a non-executable section.
	if !sectionFlags.IsExecutable() {
		return nil
	}

	offset := int(offsetInSection)
	if offset > len(sectionBytes) {
		return nil
	}

	switch elf.R_X86_64(relocationKind) {
	case elf.R_X86_64_REX_GOTPCRELX:
		if offset < 3 {
			return nil
		}

		rex := sectionBytes[offset-3]
		op := sectionBytes[offset-2]

		if rex != 0x48 && rex != 0x4c {
			return nil
		}

		if isAbsolute || isAbsoluteAddress {
			switch op {
			case 0x8b:
				return newRelaxation(RelaxRexMovIndirectToAbsolute, uint32(elf.R_X86_64_32))
			case 0x2b:
				return newRelaxation(RelaxRexSubIndirectToAbsolute, uint32(elf.R_X86_64_32))
			case 0x3b:
				return newRelaxation(RelaxRexCmpIndirectToAbsolute, uint32(elf.R_X86_64_32))
			default:
				return nil
			}
		} else if canBypassGot && op == 0x8b {
			return newRelaxation(RelaxMovIndirectToLea, uint32(elf.R_X86_64_PC32))
		}

		return nil

	case elf.R_X86_64_GOTPCRELX:
		if offset < 2 {
			return nil
		}

		// Note the absolute-form test deliberately falls through to the
		// call-form test when the opcode isn't a mov.
		if (isAbsolute || isAbsoluteAddress) && sectionBytes[offset-2] == 0x8b {
			return newRelaxation(RelaxMovIndirectToAbsolute, uint32(elf.R_X86_64_32))
		}

		if canBypassGot && sectionBytes[offset-2] == 0xff && sectionBytes[offset-1] == 0x15 {
			return newRelaxation(RelaxCallIndirectToRelative, uint32(elf.R_X86_64_PC32))
		}

		return nil

	case elf.R_X86_64_GOTPCREL:
		if canBypassGot && offset >= 2 && sectionBytes[offset-2] == 0x8b {
			return newRelaxation(RelaxMovIndirectToLea, uint32(elf.R_X86_64_PC32))
		}

		return nil

	case elf.R_X86_64_GOTTPOFF:
		if !canBypassGot || offset < 3 {
			return nil
		}

		rex := sectionBytes[offset-3]
		if (rex == 0x48 || rex == 0x4c) && sectionBytes[offset-2] == 0x8b {
			return newRelaxation(RelaxRexMovIndirectToAbsolute, uint32(elf.R_X86_64_TPOFF32))
		}

		return nil

	case elf.R_X86_64_PLT32:
		if canBypassGot {
			return newRelaxation(RelaxNoOp, uint32(elf.R_X86_64_PC32))
		}

		return nil

	case elf.R_X86_64_PLTOFF64:
		if canBypassGot {
			return newRelaxation(RelaxNoOp, uint32(elf.R_X86_64_GOTOFF64))
		}

		return nil

	case elf.R_X86_64_TLSGD:
		if !out.IsExecutable() {
			return nil
		}

		form, ok := identifyTLSGDForm(sectionBytes, offset)
		if !ok {
			return nil
		}

		if canBypassGot {
			if form == tlsGDFormLarge {
				return newRelaxation(RelaxTLSGDToLocalExecLarge, uint32(elf.R_X86_64_TPOFF32))
			}

			return newRelaxation(RelaxTLSGDToLocalExec, uint32(elf.R_X86_64_TPOFF32))
		}

		if form == tlsGDFormLarge {
			// No initial-exec rewrite exists for the large-model sequence
			return nil
		}

		return newRelaxation(RelaxTLSGDToInitialExec, uint32(elf.R_X86_64_GOTTPOFF))

	case elf.R_X86_64_TLSLD:
		if !out.IsExecutable() {
			return nil
		}

		if offset >= 3 && bytesEqual(sectionBytes[offset-3:offset], 0x48, 0x8d, 0x3d) {
			return newRelaxation(RelaxTLSLDToLocalExec, uint32(elf.R_X86_64_NONE))
		}

		return nil

	default:
		return nil
	}
}

type tlsGDForm int

const (
	tlsGDFormRegular tlsGDForm = iota
	tlsGDFormLarge
)

// identifyTLSGDForm recognises which code sequence a TLSGD relocation sits
// in: the regular small-model form or the large code model form. The
// relocation slot lies between the lea and the following __tls_get_addr
// call.
func identifyTLSGDForm(sectionBytes []byte, offset int) (tlsGDForm, bool) {
	if offset >= 4 && offset+8 <= len(sectionBytes) &&
		bytesEqual(sectionBytes[offset-4:offset], 0x66, 0x48, 0x8d, 0x3d) &&
		bytesEqual(sectionBytes[offset+4:offset+8], 0x66, 0x66, 0x48, 0xe8) {
		return tlsGDFormRegular, true
	}

	if offset >= 3 && offset+19 <= len(sectionBytes) &&
		bytesEqual(sectionBytes[offset-3:offset], 0x48, 0x8d, 0x3d) &&
		bytesEqual(sectionBytes[offset+4:offset+6], 0x48, 0xb8) &&
		bytesEqual(sectionBytes[offset+14:offset+19], 0x48, 0x01, 0xd8, 0xff, 0xd0) {
		return tlsGDFormLarge, true
	}

	return 0, false
}

func bytesEqual(b []byte, expected ...byte) bool {
	if len(b) != len(expected) {
		return false
	}

	for i, e := range expected {
		if b[i] != e {
			return false
		}
	}

	return true
}
