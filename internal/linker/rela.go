package linker

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lunixbochs/struc"
)

// Relocation is a single parsed Rela entry, with the symbol and type fields
// already split out of r_info.
type Relocation struct {
	// Offset relative to the start of the section
	Offset uint64
	Type   uint32
	Symbol uint32
	Addend int64
}

// ReadRelaSection parses count Rela64 records from r.
func ReadRelaSection(r io.Reader, count int) ([]Relocation, error) {
	relocations := make([]Relocation, 0, count)

	for i := 0; i < count; i++ {
		var rela elf.Rela64

		if err := struc.UnpackWithOptions(r, &rela, &struc.Options{Order: binary.LittleEndian}); err != nil {
			return nil, fmt.Errorf("failed to unpack Rela64 entry at index %d: %w", i, err)
		}

		symb, typ := relocationInfo(rela.Info)

		relocations = append(relocations, Relocation{
			Offset: rela.Off,
			Type:   typ,
			Symbol: symb,
			Addend: rela.Addend,
		})
	}

	return relocations, nil
}

func relocationInfo(info uint64) (sym uint32, typ uint32) {
	return uint32(info >> 32), uint32(info & 0xFFFFFFFF)
}
