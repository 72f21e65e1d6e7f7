package amd64

import "github.com/weldlinker/weld/internal/elfx"

// RelaxationKind is a specific in-place instruction rewrite. All rewrites
// preserve instruction length, so offsets of later code and relocations are
// unaffected.
type RelaxationKind uint8

const (
	// RelaxMovIndirectToLea transforms `mov x(%rip), reg` loading from the
	// GOT into `lea x(%rip), reg` computing the address directly
	RelaxMovIndirectToLea RelaxationKind = iota

	// RelaxMovIndirectToAbsolute transforms `mov x(%rip), reg` into
	// `mov $x, reg` with an absolute immediate
	RelaxMovIndirectToAbsolute

	// RelaxRexMovIndirectToAbsolute is RelaxMovIndirectToAbsolute for a
	// REX-prefixed mov
	RelaxRexMovIndirectToAbsolute

	// RelaxRexSubIndirectToAbsolute transforms an indirect sub into a sub
	// with an absolute immediate
	RelaxRexSubIndirectToAbsolute

	// RelaxRexCmpIndirectToAbsolute transforms an indirect cmp into a cmp
	// with an absolute immediate
	RelaxRexCmpIndirectToAbsolute

	// RelaxCallIndirectToRelative transforms `call *x(%rip)` into a direct
	// `call x`
	RelaxCallIndirectToRelative

	// RelaxNoOp leaves the instruction alone; only the relocation type
	// changes
	RelaxNoOp

	// RelaxTLSGDToLocalExec transforms general-dynamic TLS access into
	// local-exec
	RelaxTLSGDToLocalExec

	// RelaxTLSGDToLocalExecLarge is RelaxTLSGDToLocalExec for the large
	// code model sequence
	RelaxTLSGDToLocalExecLarge

	// RelaxTLSGDToInitialExec transforms general-dynamic TLS access into
	// initial-exec
	RelaxTLSGDToInitialExec

	// RelaxTLSLDToLocalExec transforms local-dynamic TLS access into
	// local-exec
	RelaxTLSLDToLocalExec
)

// Apply mutates sectionBytes according to the relaxation. It may advance
// offsetInSection when the relocation slot moves within the rewritten
// sequence, overwrite the addend, and set nextModifier when the rewrite has
// consumed the relocation that follows.
//
// Bounds are not re-checked here: the decider has already verified that the
// surrounding bytes exist, so an out-of-range access is a bug in one of the
// two, and panicking is the right outcome.
func (r *Relaxation) Apply(sectionBytes []byte, offsetInSection *uint64, addend *uint64, nextModifier *elfx.RelocationModifier) {
	r.kind.apply(sectionBytes, offsetInSection, addend, nextModifier)
}

func (k RelaxationKind) apply(sectionBytes []byte, offsetInSection *uint64, addend *uint64, nextModifier *elfx.RelocationModifier) {
	offset := int(*offsetInSection)

	switch k {
	case RelaxMovIndirectToLea:
		// Since the value is an address, we can turn the PC-relative mov
		// into a PC-relative lea.
		sectionBytes[offset-2] = 0x8d

	case RelaxMovIndirectToAbsolute:
		// Turn a PC-relative mov into an absolute mov. The register moves
		// from ModRM.reg to ModRM.r/m with mod=11.
		sectionBytes[offset-2] = 0xc7
		sectionBytes[offset-1] = (sectionBytes[offset-1]>>3)&0x7 | 0xc0
		*addend = 0

	case RelaxRexMovIndirectToAbsolute:
		rewriteRexIndirectToAbsolute(sectionBytes, offset, 0xc7, 0xc0)
		*addend = 0

	case RelaxRexSubIndirectToAbsolute:
		// sub r/m, imm32 is 0x81 /5
		rewriteRexIndirectToAbsolute(sectionBytes, offset, 0x81, 0xe8)
		*addend = 0

	case RelaxRexCmpIndirectToAbsolute:
		// cmp r/m, imm32 is 0x81 /7
		rewriteRexIndirectToAbsolute(sectionBytes, offset, 0x81, 0xf8)
		*addend = 0

	case RelaxCallIndirectToRelative:
		// The address-size prefix keeps the direct call the same length as
		// the indirect one it replaces.
		copy(sectionBytes[offset-2:offset], []byte{0x67, 0xe8})

	case RelaxTLSGDToLocalExec:
		copy(sectionBytes[offset-4:offset+8], []byte{
			0x64, 0x48, 0x8b, 0x04, 0x25, 0, 0, 0, 0, // mov %fs:0,%rax
			0x48, 0x8d, 0x80, // lea {offset}(%rax),%rax
		})
		*offsetInSection += 8
		*addend = 0
		*nextModifier = elfx.ModifierSkipNext

	case RelaxTLSGDToLocalExecLarge:
		copy(sectionBytes[offset-3:offset+19], []byte{
			0x64, 0x48, 0x8b, 0x04, 0x25, 0, 0, 0, 0, // mov %fs:0,%rax
			0x48, 0x8d, 0x80, 0, 0, 0, 0, // lea {offset}(%rax),%rax
			0x66, 0x0f, 0x1f, 0x44, 0, 0, // nopw (%rax,%rax)
		})
		*offsetInSection += 9
		*addend = 0
		*nextModifier = elfx.ModifierSkipNext

	case RelaxTLSGDToInitialExec:
		copy(sectionBytes[offset-4:offset+8], []byte{
			0x64, 0x48, 0x8b, 0x04, 0x25, 0, 0, 0, 0, // mov %fs:0,%rax
			0x48, 0x03, 0x05, // add {got_tpoff}(%rip),%rax
		})
		*offsetInSection += 8
		// The add reads its GOT operand relative to the end of the original
		// instruction pair, 12 bytes past the original slot.
		newAddend := int64(-12)
		*addend = uint64(newAddend)
		*nextModifier = elfx.ModifierSkipNext

	case RelaxTLSLDToLocalExec:
		// Transforms to `mov %fs:0x0,%rax` with padding whose size depends
		// on whether the subsequent instruction is 64-bit or 32-bit.
		if offset+6 <= len(sectionBytes) && sectionBytes[offset+4] == 0x48 && sectionBytes[offset+5] == 0xb8 {
			copy(sectionBytes[offset-3:offset+19], []byte{
				// nopw %cs:0x0(%rax,%rax,1)
				0x66, 0x66, 0x66, 0x66, 0x2e, 0x0f, 0x1f, 0x84, 0, 0, 0, 0, 0,
				// mov %fs:0,%rax
				0x64, 0x48, 0x8b, 0x04, 0x25, 0, 0, 0, 0,
			})
			*offsetInSection += 15
		} else {
			copy(sectionBytes[offset-3:offset+9], []byte{
				0x66, 0x66, 0x66, // prefixes padding the mov to the original length
				0x64, 0x48, 0x8b, 0x04, 0x25, 0, 0, 0, 0, // mov %fs:0,%rax
			})
			*offsetInSection += 5
		}
		*nextModifier = elfx.ModifierSkipNext

	case RelaxNoOp:
	}
}

// rewriteRexIndirectToAbsolute rewrites a REX-prefixed rip-relative
// instruction into its absolute-immediate form: REX.R moves into REX.B
// because the register now sits in the r/m slot, the opcode is replaced,
// and ModR/M is rebuilt with mod=11 plus the opcode extension bits.
func rewriteRexIndirectToAbsolute(sectionBytes []byte, offset int, opcode byte, modRMBase byte) {
	rex := sectionBytes[offset-3]
	sectionBytes[offset-3] = (rex &^ 4) | ((rex & 4) >> 2)
	sectionBytes[offset-2] = opcode
	sectionBytes[offset-1] = (sectionBytes[offset-1]>>3)&0x7 | modRMBase
}

func (k RelaxationKind) String() string {
	switch k {
	case RelaxMovIndirectToLea:
		return "MovIndirectToLea"
	case RelaxMovIndirectToAbsolute:
		return "MovIndirectToAbsolute"
	case RelaxRexMovIndirectToAbsolute:
		return "RexMovIndirectToAbsolute"
	case RelaxRexSubIndirectToAbsolute:
		return "RexSubIndirectToAbsolute"
	case RelaxRexCmpIndirectToAbsolute:
		return "RexCmpIndirectToAbsolute"
	case RelaxCallIndirectToRelative:
		return "CallIndirectToRelative"
	case RelaxNoOp:
		return "NoOp"
	case RelaxTLSGDToLocalExec:
		return "TlsGdToLocalExec"
	case RelaxTLSGDToLocalExecLarge:
		return "TlsGdToLocalExecLarge"
	case RelaxTLSGDToInitialExec:
		return "TlsGdToInitialExec"
	case RelaxTLSLDToLocalExec:
		return "TlsLdToLocalExec"
	default:
		return "unknown"
	}
}
