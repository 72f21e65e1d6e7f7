package linker

import (
	"fmt"

	"github.com/weldlinker/weld/internal/amd64"
	"github.com/weldlinker/weld/internal/elfx"
)

// BuildPLT emits one stub per entry of gotAddresses, in order, and returns
// the full contents of the .plt section. pltBase is the address the section
// will be loaded at.
func BuildPLT(pltBase uint64, gotAddresses []uint64) ([]byte, error) {
	buff := make([]byte, len(gotAddresses)*elfx.PLTEntrySize)

	for i, gotAddress := range gotAddresses {
		entry := buff[i*elfx.PLTEntrySize : (i+1)*elfx.PLTEntrySize]
		pltAddress := pltBase + uint64(i*elfx.PLTEntrySize)

		if err := amd64.WritePLTEntry(entry, gotAddress, pltAddress); err != nil {
			return nil, fmt.Errorf("failed to write PLT entry %d: %w", i, err)
		}
	}

	return buff, nil
}
