package main

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/weldlinker/weld/internal/amd64"
	"github.com/weldlinker/weld/internal/elfx"
	"github.com/weldlinker/weld/internal/linker"
	"github.com/weldlinker/weld/internal/resolution"
)

var (
	errNotAmd64       = errors.New("object is not an x86_64 ELF file")
	errBadSymbolIndex = errors.New("symbol index out of symbol table range")
)

func newRelaxCommand(opts *rootOptions) *cobra.Command {
	outputPath := ""

	cmd := &cobra.Command{
		Use:   "relax <object>",
		Short: "Apply relocation relaxations to an object's allocatable sections",
		Long: "Reads an ELF object, runs the relocation writer over its allocatable\n" +
			"sections against a resolver built from the object's own symbol table, and\n" +
			"writes the patched section image out. GOT and PLT addresses are not\n" +
			"assigned, so the interesting output is which relocations relax away;\n" +
			"run with WELD_LOG_LEVEL=debug to see every relaxation applied.",
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			input, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("could not open input object: %w", err)
			}
			defer input.Close()

			file, err := elf.NewFile(input)
			if err != nil {
				return fmt.Errorf("failed to read ELF file: %w", err)
			}

			if uint16(file.Machine) != amd64.ELFHeaderArchMagic {
				return errNotAmd64
			}

			sections, err := collectSections(file)
			if err != nil {
				return err
			}

			resolver, err := newSymtabResolver(file)
			if err != nil {
				return err
			}

			writer, err := linker.NewWriter(opts.logger, resolver, linker.Layout{}, opts.config.Writer)
			if err != nil {
				return err
			}

			if err := writer.Run(sections); err != nil {
				return err
			}

			output, err := os.OpenFile(outputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
			if err != nil {
				return fmt.Errorf("could not open output file: %w", err)
			}
			defer output.Close()

			written, err := linker.WriteImage(output, sections, opts.config.Writer.Alignment)
			if err != nil {
				return fmt.Errorf("failed to write output image: %w", err)
			}

			opts.logger.Info("wrote relaxed image",
				"path", outputPath,
				"sections", len(sections),
				"bytes", written,
			)

			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "weld.out", "Path to output image")

	return cmd
}

// collectSections reads every allocatable progbits section together with the
// relocations that target it.
func collectSections(file *elf.File) ([]*linker.Section, error) {
	sectionsByIndex := map[int]*linker.Section{}
	sections := []*linker.Section{}

	for i, section := range file.Sections {
		if section.Type != elf.SHT_PROGBITS || section.Flags&elf.SHF_ALLOC == 0 {
			continue
		}

		data, err := io.ReadAll(section.Open())
		if err != nil {
			return nil, fmt.Errorf("failed to read section '%s': %w", section.Name, err)
		}

		out := &linker.Section{
			Name:  section.Name,
			Addr:  section.Addr,
			Flags: elfx.SectionFlags(section.Flags),
			Data:  data,
		}

		sectionsByIndex[i] = out
		sections = append(sections, out)
	}

	for _, section := range file.Sections {
		if section.Type != elf.SHT_RELA {
			continue
		}

		target, ok := sectionsByIndex[int(section.Info)]
		if !ok {
			continue
		}

		count := int(section.Size / section.Entsize)

		relocations, err := linker.ReadRelaSection(section.Open(), count)
		if err != nil {
			return nil, fmt.Errorf("failed to read relocations from '%s': %w", section.Name, err)
		}

		target.Relocations = append(target.Relocations, relocations...)
	}

	return sections, nil
}

type symtabResolver struct {
	symbols []elf.Symbol
}

func newSymtabResolver(file *elf.File) (*symtabResolver, error) {
	symbols, err := file.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol table: %w", err)
	}

	return &symtabResolver{symbols: symbols}, nil
}

func (r *symtabResolver) Resolve(symbolIndex uint32) (linker.SymbolValue, error) {
	// debug/elf omits the null symbol at index 0
	if symbolIndex == 0 {
		return linker.SymbolValue{}, nil
	}

	if int(symbolIndex) > len(r.symbols) {
		return linker.SymbolValue{}, fmt.Errorf("%w: %d >= %d", errBadSymbolIndex, symbolIndex, len(r.symbols)+1)
	}

	symb := r.symbols[symbolIndex-1]

	flags := resolution.ValueFlags(0)

	switch symb.Section {
	case elf.SHN_UNDEF:
		flags |= resolution.FlagDynamic
	case elf.SHN_ABS:
		flags |= resolution.FlagAbsolute
	default:
		// Defined in this object, so a reference can skip the GOT
		flags |= resolution.FlagAddress | resolution.FlagCanBypassGot
	}

	if elf.ST_TYPE(symb.Info) == elf.STT_GNU_IFUNC {
		flags |= resolution.FlagIFunc
	}

	return linker.SymbolValue{
		Value: symb.Value,
		Flags: flags,
	}, nil
}
