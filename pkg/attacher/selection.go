package attacher

import (
	"github.com/cilium/ebpf/btf"

	"github.com/qmonnet/retsnoop-go/pkg/btfshape"
	"github.com/qmonnet/retsnoop-go/pkg/globmatch"
)

// enforcedDenyGlobs can never be overridden by the caller. They protect
// against tracer-induced recursion, trampoline re-entry, and known
// kernel fexit-on-long-sleeping-syscall faults.
var enforcedDenyGlobs = []string{
	"bpf_get_smp_processor_id",
	"migrate_enable",
	"migrate_disable",
	"rcu_read_lock*",
	"rcu_read_unlock*",
	"__bpf_prog_enter*",
	"__bpf_prog_exit*",
	"*_sys_select",
	"*_sys_epoll_wait",
	"*_sys_ppoll",
}

// Prepare walks the kernel BTF in ascending type-id order and builds the
// attachment plan, applying the symbol lookup, deny/allow glob filters,
// the kprobe-attachability oracle, arity/type admissibility, the optional
// cap, and the caller's filter predicate in that order. It must be called exactly once, before Load.
func (a *Attacher) Prepare() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.prepared {
		return newError(ErrInvalidArgument, "Prepare called more than once", nil)
	}

	iter := a.btfSpec.Iterate()
	for iter.Next() {
		fn, ok := iter.Type.(*btf.Func)
		if !ok {
			continue
		}
		name := fn.Name

		addr, ok := a.symbols.Lookup(name)
		if !ok {
			continue
		}

		shape, ok := a.evaluate(name, fn)
		if !ok {
			continue
		}

		if a.opts.MaxFuncCnt > 0 && len(a.funcs) >= a.opts.MaxFuncCnt {
			break
		}

		btfID, err := a.btfSpec.TypeID(fn)
		if err != nil {
			continue
		}

		selectedIndex := len(a.funcs)
		if a.opts.FuncFilter != nil && !a.opts.FuncFilter(uint32(btfID), name, selectedIndex) {
			continue
		}

		a.funcs = append(a.funcs, FuncInfo{
			Addr:     addr,
			Name:     name,
			BTFID:    btfID,
			ArgCount: shape.ArgCount,
		})
		a.slots[shape.ArgCount].consumerCount++
		if a.slots[shape.ArgCount].consumerCount == 1 {
			a.slots[shape.ArgCount].templateIndex = selectedIndex
		}
	}

	if len(a.funcs) == 0 {
		return newError(ErrNotFound, "no kernel function matched the configured selection", nil)
	}

	a.prepared = true
	return nil
}

// evaluate applies the deny/allow glob filters, the kprobe-attachability
// oracle, and the BTF admissibility check to a candidate whose symbol
// lookup has already succeeded (selection algorithm steps 2-5). It does
// not apply the max-count cap or the caller filter, since both depend on
// the running selected-index, which only Prepare's loop can supply.
func (a *Attacher) evaluate(name string, fn *btf.Func) (btfshape.Shape, bool) {
	if a.matchesAnyDeny(name) {
		return btfshape.Shape{}, false
	}
	if len(a.allowGlobs) > 0 && !a.matchesAnyAllow(name) {
		return btfshape.Shape{}, false
	}
	if !a.kprobes.IsAttachable(name) {
		return btfshape.Shape{}, false
	}
	shape, err := btfshape.Admit(fn)
	if err != nil {
		a.log.Debug("skipping function, inadmissible signature", "name", name, "reason", err)
		return btfshape.Shape{}, false
	}
	return shape, true
}

func (a *Attacher) matchesAnyDeny(name string) bool {
	for _, g := range a.denyGlobs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (a *Attacher) matchesAnyAllow(name string) bool {
	for _, g := range a.allowGlobs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// mustCompileEnforced compiles the fixed, non-overridable deny globs. It
// panics on error since these patterns are constants, not caller input.
// It runs on every New, so each Attacher gets its own compiled list.
func mustCompileEnforced() []globmatch.Glob {
	globs := make([]globmatch.Glob, len(enforcedDenyGlobs))
	for i, p := range enforcedDenyGlobs {
		globs[i] = globmatch.MustCompile(p)
	}
	return globs
}
