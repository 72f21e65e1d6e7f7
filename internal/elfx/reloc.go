// Package elfx holds the relocation vocabulary shared between the
// architecture backends and the section writer
package elfx

// RelocationKind describes how a relocation computes the value written into
// its slot, independent of the concrete ELF r_type numbering.
type RelocationKind uint8

const (
	// RelocationKindAbsolute writes the symbol value plus addend
	RelocationKindAbsolute RelocationKind = iota

	// RelocationKindRelative writes the symbol value relative to the place
	// of the relocation
	RelocationKindRelative

	// RelocationKindGotRelative writes the address of the symbol's GOT
	// entry relative to the place of the relocation
	RelocationKindGotRelative

	// RelocationKindPltRelative writes the address of the symbol's PLT
	// entry relative to the place of the relocation
	RelocationKindPltRelative

	// RelocationKindGotRelGotBase writes the symbol's GOT entry relative to
	// the base of the GOT
	RelocationKindGotRelGotBase

	// RelocationKindSymRelGotBase writes the symbol value relative to the
	// base of the GOT
	RelocationKindSymRelGotBase

	// RelocationKindPltRelGotBase writes the symbol's PLT entry relative to
	// the base of the GOT
	RelocationKindPltRelGotBase

	// RelocationKindTlsGd writes the GOT entry holding the module/offset
	// pair for general-dynamic TLS access, relative to the place
	RelocationKindTlsGd

	// RelocationKindTlsLd writes the GOT entry holding the module ID for
	// local-dynamic TLS access, relative to the place
	RelocationKindTlsLd

	// RelocationKindDtpOff writes the symbol's offset within its TLS block
	RelocationKindDtpOff

	// RelocationKindGotTpOff writes the GOT entry holding the symbol's
	// thread-pointer offset, relative to the place
	RelocationKindGotTpOff

	// RelocationKindTpOff writes the symbol's offset from the thread
	// pointer
	RelocationKindTpOff

	// RelocationKindNone writes nothing
	RelocationKindNone
)

// RelocationKindInfo describes how a relocation writes its result: the value
// computation, the width of the slot, and an optional bit mask applied to
// the value before writing (zero means no mask).
type RelocationKindInfo struct {
	Kind     RelocationKind
	ByteSize int
	Mask     uint64
}

// RelocationModifier is the directive cell the section writer reads after
// each relocation.
type RelocationModifier uint8

const (
	// ModifierNormal continues with the next relocation as usual
	ModifierNormal RelocationModifier = iota

	// ModifierSkipNext tells the writer that the next relocation in
	// iteration order has already been consumed by a paired rewrite
	ModifierSkipNext
)

// DynamicRelocationKind is the architecture-independent name for a dynamic
// relocation; backends map it to their concrete ELF constant.
type DynamicRelocationKind uint8

const (
	DynamicRelocationCopy DynamicRelocationKind = iota
	DynamicRelocationIrelative
	DynamicRelocationDtpMod
	DynamicRelocationDtpOff
	DynamicRelocationTpOff
	DynamicRelocationRelative
	DynamicRelocationDynamicSymbol
)

// PLTEntrySize is the size of a single PLT stub on all supported
// architectures.
const PLTEntrySize = 16
