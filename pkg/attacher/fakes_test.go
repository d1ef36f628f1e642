package attacher

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/btf"
)

type fakeSymbols map[string]uint64

func (f fakeSymbols) Lookup(name string) (uint64, bool) {
	addr, ok := f[name]
	return addr, ok
}

type fakeKprobes map[string]struct{}

func (f fakeKprobes) IsAttachable(name string) bool {
	_, ok := f[name]
	return ok
}

func allAttachable(names ...string) fakeKprobes {
	set := make(fakeKprobes, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

type fakePrototypes struct{}

func (fakePrototypes) Slot(direction Direction, argCount int) *ebpf.ProgramSpec { return nil }
func (fakePrototypes) ActivationMap() *ebpf.Map                                 { return nil }
func (fakePrototypes) KernelTypes() *btf.Spec                                   { return nil }
