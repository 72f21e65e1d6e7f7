package amd64

import (
	"debug/elf"
	"errors"
	"fmt"

	"github.com/weldlinker/weld/internal/elfx"
)

var ErrUnsupportedRelocation = errors.New("unsupported relocation type")

type relocationKindAndSize struct {
	kind elfx.RelocationKind
	size int
}

var relocationKindsX86_64 = map[elf.R_X86_64]relocationKindAndSize{
	elf.R_X86_64_NONE:          {elfx.RelocationKindNone, 0},
	elf.R_X86_64_64:            {elfx.RelocationKindAbsolute, 8},
	elf.R_X86_64_32:            {elfx.RelocationKindAbsolute, 4},
	elf.R_X86_64_32S:           {elfx.RelocationKindAbsolute, 4},
	elf.R_X86_64_16:            {elfx.RelocationKindAbsolute, 2},
	elf.R_X86_64_8:             {elfx.RelocationKindAbsolute, 1},
	elf.R_X86_64_PC64:          {elfx.RelocationKindRelative, 8},
	elf.R_X86_64_PC32:          {elfx.RelocationKindRelative, 4},
	elf.R_X86_64_PC16:          {elfx.RelocationKindRelative, 2},
	elf.R_X86_64_PC8:           {elfx.RelocationKindRelative, 1},
	elf.R_X86_64_GOTPCREL:      {elfx.RelocationKindGotRelative, 4},
	elf.R_X86_64_GOTPCRELX:     {elfx.RelocationKindGotRelative, 4},
	elf.R_X86_64_REX_GOTPCRELX: {elfx.RelocationKindGotRelative, 4},
	elf.R_X86_64_GOTPCREL64:    {elfx.RelocationKindGotRelative, 8},
	elf.R_X86_64_GOT32:         {elfx.RelocationKindGotRelGotBase, 4},
	elf.R_X86_64_GOT64:         {elfx.RelocationKindGotRelGotBase, 8},
	elf.R_X86_64_GOTOFF64:      {elfx.RelocationKindSymRelGotBase, 8},
	elf.R_X86_64_PLT32:         {elfx.RelocationKindPltRelative, 4},
	elf.R_X86_64_PLTOFF64:      {elfx.RelocationKindPltRelGotBase, 8},
	elf.R_X86_64_TLSGD:         {elfx.RelocationKindTlsGd, 4},
	elf.R_X86_64_TLSLD:         {elfx.RelocationKindTlsLd, 4},
	elf.R_X86_64_DTPOFF32:      {elfx.RelocationKindDtpOff, 4},
	elf.R_X86_64_DTPOFF64:      {elfx.RelocationKindDtpOff, 8},
	elf.R_X86_64_GOTTPOFF:      {elfx.RelocationKindGotTpOff, 4},
	elf.R_X86_64_TPOFF32:       {elfx.RelocationKindTpOff, 4},
	elf.R_X86_64_TPOFF64:       {elfx.RelocationKindTpOff, 8},
}

// RelocationFromRaw derives the writing behaviour of a relocation from its
// raw ELF r_type.
func RelocationFromRaw(rType uint32) (elfx.RelocationKindInfo, error) {
	entry, ok := relocationKindsX86_64[elf.R_X86_64(rType)]
	if !ok {
		return elfx.RelocationKindInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedRelocation, RelTypeToString(rType))
	}

	return elfx.RelocationKindInfo{
		Kind:     entry.kind,
		ByteSize: entry.size,
	}, nil
}
