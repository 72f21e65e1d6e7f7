// Package linker contains the section writer: the loop that walks a
// section's relocations, asks the architecture backend for relaxations,
// and patches relocation values into the code bytes.
package linker

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/weldlinker/weld/internal/amd64"
	"github.com/weldlinker/weld/internal/elfx"
	"github.com/weldlinker/weld/internal/output"
	"github.com/weldlinker/weld/internal/resolution"
)

var (
	errRelocationOutOfBounds = errors.New("relocation exceeds bounds of section")
	errSectionOverlap        = errors.New("section overlaps previously written data")
	errUnknownRelocationKind = errors.New("unknown relocation kind")
)

// SymbolValue is everything the resolver has established about one symbol:
// its final value, the flags relaxation decisions depend on, and the
// addresses of its GOT and PLT entries where those exist.
type SymbolValue struct {
	Value      uint64
	Flags      resolution.ValueFlags
	GotAddress uint64
	PltAddress uint64
}

// Resolver supplies symbol values by symbol table index. Symbol resolution
// and GOT/PLT address assignment happen upstream of this package.
type Resolver interface {
	Resolve(symbolIndex uint32) (SymbolValue, error)
}

// Layout carries the output-wide addresses that relocation values depend
// on besides the symbol's own.
type Layout struct {
	// Base address of the GOT
	GotBase uint64

	// End of the TLS segment; on x86_64 the thread pointer offset of a TLS
	// symbol is its address minus this
	TLSEnd uint64
}

// Writer applies relocations to sections, relaxing them where the backend
// finds a cheaper form.
type Writer struct {
	logger *slog.Logger

	resolver    Resolver
	layout      Layout
	outputKind  output.Kind
	parallelism int
}

func NewWriter(logger *slog.Logger, resolver Resolver, layout Layout, config *Config) (*Writer, error) {
	kind, err := config.OutputKind()
	if err != nil {
		return nil, err
	}

	return &Writer{
		logger: logger,

		resolver:    resolver,
		layout:      layout,
		outputKind:  kind,
		parallelism: config.Parallelism,
	}, nil
}

// Run processes every section, in parallel up to the configured limit. Each
// section's buffer and relocation cursor are owned by exactly one goroutine
// for the duration.
func (w *Writer) Run(sections []*Section) error {
	eg := &errgroup.Group{}
	eg.SetLimit(w.parallelism)

	for _, section := range sections {
		eg.Go(func() error {
			if err := w.RelaxSection(section); err != nil {
				return fmt.Errorf("failed to process relocations for section '%s': %w", section.Name, err)
			}

			return nil
		})
	}

	return eg.Wait()
}

// RelaxSection walks the section's relocations in order. For each one it
// consults the backend against the original bytes, applies any rewrite, and
// then patches the (possibly replaced) relocation value into the slot. A
// rewrite that consumes the following relocation makes the loop skip it
// without consulting the backend again.
func (w *Writer) RelaxSection(section *Section) error {
	modifier := elfx.ModifierNormal

	for i := range section.Relocations {
		if modifier == elfx.ModifierSkipNext {
			modifier = elfx.ModifierNormal
			continue
		}

		rel := &section.Relocations[i]

		if err := w.applyRelocation(section, rel, &modifier); err != nil {
			return fmt.Errorf("failed to apply %s at offset 0x%x: %w", amd64.RelTypeToString(rel.Type), rel.Offset, err)
		}
	}

	return nil
}

func (w *Writer) applyRelocation(section *Section, rel *Relocation, modifier *elfx.RelocationModifier) error {
	symb, err := w.resolver.Resolve(rel.Symbol)
	if err != nil {
		return fmt.Errorf("failed to resolve symbol %d: %w", rel.Symbol, err)
	}

	relInfo, err := amd64.RelocationFromRaw(rel.Type)
	if err != nil {
		return err
	}

	offset := rel.Offset
	addend := uint64(rel.Addend)

	relaxation := amd64.NewRelaxation(rel.Type, section.Data, offset, symb.Flags, w.outputKind, section.Flags)
	if relaxation != nil {
		relInfo = relaxation.RelInfo()
		relaxation.Apply(section.Data, &offset, &addend, modifier)

		w.logger.Debug("relaxed relocation",
			"section", section.Name,
			"offset", fmt.Sprintf("0x%02x", rel.Offset),
			"type", amd64.RelTypeToString(rel.Type),
			"relaxation", relaxation.Kind(),
			"flags", symb.Flags,
		)
	}

	if relInfo.Kind == elfx.RelocationKindNone {
		return nil
	}

	value, err := w.relocationValue(relInfo.Kind, symb, addend, section.Addr+rel.Offset)
	if err != nil {
		return err
	}

	return writeValue(section.Data, offset, relInfo, value)
}

// relocationValue computes the value a relocation stores, before slot-width
// truncation. place is the virtual address of the relocation as recorded in
// its Rela entry, before any rewrite moved the slot.
// All arithmetic wraps in 64 bits; PC-relative results are negative offsets
// encoded two's-complement.
func (w *Writer) relocationValue(kind elfx.RelocationKind, symb SymbolValue, addend uint64, place uint64) (uint64, error) {
	switch kind {
	case elfx.RelocationKindAbsolute:
		return symb.Value + addend, nil
	case elfx.RelocationKindRelative:
		return symb.Value + addend - place, nil
	case elfx.RelocationKindGotRelative, elfx.RelocationKindTlsGd, elfx.RelocationKindTlsLd, elfx.RelocationKindGotTpOff:
		return symb.GotAddress + addend - place, nil
	case elfx.RelocationKindPltRelative:
		return symb.PltAddress + addend - place, nil
	case elfx.RelocationKindGotRelGotBase:
		return symb.GotAddress + addend - w.layout.GotBase, nil
	case elfx.RelocationKindSymRelGotBase:
		return symb.Value + addend - w.layout.GotBase, nil
	case elfx.RelocationKindPltRelGotBase:
		return symb.PltAddress + addend - w.layout.GotBase, nil
	case elfx.RelocationKindTpOff:
		return symb.Value + addend - w.layout.TLSEnd, nil
	case elfx.RelocationKindDtpOff:
		return symb.Value + addend, nil
	default:
		return 0, fmt.Errorf("%w: %d", errUnknownRelocationKind, kind)
	}
}

func writeValue(data []byte, offset uint64, relInfo elfx.RelocationKindInfo, value uint64) error {
	if offset+uint64(relInfo.ByteSize) > uint64(len(data)) {
		return errRelocationOutOfBounds
	}

	if relInfo.Mask != 0 {
		value &= relInfo.Mask
	}

	switch relInfo.ByteSize {
	case 1:
		data[offset] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(data[offset:], uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(data[offset:], uint32(value))
	case 8:
		binary.LittleEndian.PutUint64(data[offset:], value)
	default:
		return fmt.Errorf("%w: unsupported slot size %d", errUnknownRelocationKind, relInfo.ByteSize)
	}

	return nil
}
