// Package symoracle answers two questions the selection engine needs about
// a candidate kernel function name: is it a live kernel symbol, and is it
// attachable as a kprobe. Both answers come from parsing external,
// kernel-maintained text tables; this package owns only the parsing and
// the lookup, not the decision of what to do with the answer.
package symoracle

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"
)

// SymbolTable maps kernel symbol names to their address, built from a
// /proc/kallsyms-shaped stream. Only function symbols (type 't' or 'T')
// are retained.
type SymbolTable struct {
	byName map[string]uint64
}

// Lookup returns the address of name, and whether it was found at all.
func (t *SymbolTable) Lookup(name string) (uint64, bool) {
	addr, ok := t.byName[name]
	return addr, ok
}

// Len reports how many function symbols were parsed.
func (t *SymbolTable) Len() int {
	return len(t.byName)
}

// ParseKallsyms reads a /proc/kallsyms-shaped stream: each line is
// "address type name [module]". Only text/function symbol types (t, T)
// are kept; everything else (data, bss, absolute, weak, ...) is skipped,
// since only functions are ever attach candidates.
func ParseKallsyms(r io.Reader) (*SymbolTable, error) {
	t := &SymbolTable{byName: make(map[string]uint64)}

	scanner := bufio.NewScanner(r)
	// Kallsyms lines can be long in debug kernels with many module
	// annotations; grow past bufio's 64KiB default defensively.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		addr, err := strconv.ParseUint(fields[0], 16, 64)
		if err != nil {
			continue
		}
		switch fields[1] {
		case "t", "T":
		default:
			continue
		}
		name := fields[2]
		// Keep the first address seen for a given name: kallsyms lists
		// module-local duplicates after the core kernel's own symbols.
		if _, exists := t.byName[name]; !exists {
			t.byName[name] = addr
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// KprobeSet is a sorted set of kernel function names attachable via
// kprobe, built from /sys/kernel/tracing/available_filter_functions.
type KprobeSet struct {
	names []string
}

// IsAttachable reports whether name appears in the set, via binary search.
func (k *KprobeSet) IsAttachable(name string) bool {
	i := sort.SearchStrings(k.names, name)
	return i < len(k.names) && k.names[i] == name
}

// Len reports the number of distinct names in the set.
func (k *KprobeSet) Len() int {
	return len(k.names)
}

// ParseAvailableFilterFunctions reads an available_filter_functions-shaped
// stream: each line's first whitespace-delimited token is a function name;
// trailing tokens are module annotations and are ignored. Names that
// appear more than once (notably same-named symbols in different modules,
// which this file format cannot disambiguate) collapse to a single entry.
func ParseAvailableFilterFunctions(r io.Reader) (*KprobeSet, error) {
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		seen[fields[0]] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return &KprobeSet{names: names}, nil
}
