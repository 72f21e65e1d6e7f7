package elfx

import "debug/elf"

// SectionFlags wraps ELF sh_flags.
type SectionFlags uint64

func (f SectionFlags) Has(flag elf.SectionFlag) bool {
	return uint64(f)&uint64(flag) != 0
}

// IsExecutable reports whether the section contains machine code.
func (f SectionFlags) IsExecutable() bool {
	return f.Has(elf.SHF_EXECINSTR)
}
