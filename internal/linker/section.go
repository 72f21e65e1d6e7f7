package linker

import (
	"fmt"
	"io"
	"sort"

	"github.com/weldlinker/weld/internal/align"
	"github.com/weldlinker/weld/internal/elfx"
	"github.com/weldlinker/weld/internal/iometa"
)

// Section is one output section's worth of work: its code bytes, the
// relocations that apply to them, and where the section will land in the
// output. Each section is owned exclusively by one worker while relocations
// are being processed.
type Section struct {
	Name string

	// Virtual address the section will be loaded at
	Addr uint64

	Flags elfx.SectionFlags

	// Raw section contents; mutated in place by relaxation
	Data []byte

	// Relocations in ascending offset order
	Relocations []Relocation
}

// WriteImage writes the given sections to w in address order, padding gaps
// between them with zeros and rounding the overall image up to a multiple
// of alignment. Addresses are taken relative to the first section.
func WriteImage(w io.Writer, sections []*Section, alignment uint64) (int64, error) {
	if len(sections) == 0 {
		return 0, nil
	}

	ordered := make([]*Section, len(sections))
	copy(ordered, sections)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Addr < ordered[j].Addr
	})

	cw := &iometa.CountingWriter{Writer: w}
	base := ordered[0].Addr

	for _, section := range ordered {
		offset := section.Addr - base

		if uint64(cw.BytesWritten()) > offset {
			return int64(cw.BytesWritten()), fmt.Errorf("failed to lay out section '%s': %w", section.Name, errSectionOverlap)
		}

		// Sections may have gaps between them due to alignment; fill with
		// zeros, as we can't assume the writer is zeroed and don't have Seek
		if padding := offset - uint64(cw.BytesWritten()); padding > 0 {
			if err := iometa.WriteZeros(cw, int(padding)); err != nil {
				return int64(cw.BytesWritten()), fmt.Errorf("failed to write padding before section '%s': %w", section.Name, err)
			}
		}

		if _, err := cw.Write(section.Data); err != nil {
			return int64(cw.BytesWritten()), fmt.Errorf("failed to write section '%s': %w", section.Name, err)
		}
	}

	end := align.Address(uint64(cw.BytesWritten()), alignment)
	if tail := end - uint64(cw.BytesWritten()); tail > 0 {
		if err := iometa.WriteZeros(cw, int(tail)); err != nil {
			return int64(cw.BytesWritten()), fmt.Errorf("failed to write image tail padding: %w", err)
		}
	}

	return int64(cw.BytesWritten()), nil
}
