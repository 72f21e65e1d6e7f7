// Package resolution defines the contract between symbol resolution and the
// relocation writer. Resolution itself happens upstream; this package only
// names the per-symbol facts that relaxation decisions depend on.
package resolution

import "strings"

// ValueFlags is a set of facts the resolver has established about a
// symbol's final value.
type ValueFlags uint8

const (
	// FlagAddress means the value is a concrete runtime address
	FlagAddress ValueFlags = 1 << iota

	// FlagAbsolute means the value is a constant rather than a relocatable
	// address
	FlagAbsolute

	// FlagDynamic means the value is supplied by the dynamic loader at
	// runtime; if set, FlagAbsolute may not be relied upon
	FlagDynamic

	// FlagCanBypassGot means the definition is local enough that a
	// reference need not go through the GOT
	FlagCanBypassGot

	// FlagIFunc means the symbol is an indirect function and must be
	// reached via PLT/GOT regardless of the other flags
	FlagIFunc
)

func (f ValueFlags) Has(flags ValueFlags) bool {
	return f&flags == flags
}

func (f ValueFlags) String() string {
	names := []string{}

	for _, flag := range []struct {
		bit  ValueFlags
		name string
	}{
		{FlagAddress, "address"},
		{FlagAbsolute, "absolute"},
		{FlagDynamic, "dynamic"},
		{FlagCanBypassGot, "can_bypass_got"},
		{FlagIFunc, "ifunc"},
	} {
		if f.Has(flag.bit) {
			names = append(names, flag.name)
		}
	}

	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, "|")
}
