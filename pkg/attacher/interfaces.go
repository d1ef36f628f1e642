package attacher

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/btf"
)

// SymbolTable answers "is name a live kernel symbol, and at what address".
// *symoracle.SymbolTable satisfies this.
type SymbolTable interface {
	Lookup(name string) (addr uint64, ok bool)
}

// KprobeSet answers "is name attachable as a kprobe". *symoracle.KprobeSet
// satisfies this.
type KprobeSet interface {
	IsAttachable(name string) bool
}

// PrototypeSet is the caller-authored set of unloaded fentry/fexit
// prototype programs, one per (direction, arg count) pair, plus the
// shared activation map and the kernel BTF handle used to resolve attach
// targets. The Attacher never authors these programs itself.
type PrototypeSet interface {
	// Slot returns the prototype program spec for the given direction and
	// argument count, or nil if none was authored for that combination.
	Slot(direction Direction, argCount int) *ebpf.ProgramSpec
	// ActivationMap returns the single-element map the prototype programs
	// read on entry to decide whether to do useful work.
	ActivationMap() *ebpf.Map
	// KernelTypes returns the BTF handle the prototype programs were
	// authored against, used to resolve AttachTo targets when cloning.
	KernelTypes() *btf.Spec
}
