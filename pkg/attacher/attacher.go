// Package attacher implements the selection engine and probe materializer
// that together enumerate kernel functions from BTF, filter them down to a
// caller-approved subset, and attach a cloned fentry/fexit pair to each
// survivor.
package attacher

import (
	"log/slog"
	"os"
	"sync"

	"github.com/cilium/ebpf/btf"

	"github.com/qmonnet/retsnoop-go/internal/logger"
	"github.com/qmonnet/retsnoop-go/pkg/globmatch"
)

// Attacher is the aggregate root: it owns the kernel symbol and kprobe
// oracles, the kernel BTF handle, the prototype set, the allow/deny glob
// lists, the selected-function plan, the per-arity prototype slots, the
// ip-to-index lookup table and the activation state. It is not safe for
// concurrent use; Load is explicitly serialized with a mutex, but the
// caller must not call any other method concurrently either.
type Attacher struct {
	mu sync.Mutex

	opts Options
	log  *slog.Logger

	symbols SymbolTable
	kprobes KprobeSet
	btfSpec *btf.Spec
	protos  PrototypeSet

	denyGlobs  []globmatch.Glob
	allowGlobs []globmatch.Glob

	funcs []FuncInfo
	slots [MaxArgs + 1]PrototypeSlot

	ipToID map[uint64]int

	prepared  bool
	loaded    bool
	attached  bool
	activated bool
}

// New constructs an Attacher bound to the given symbol table, kprobe set,
// kernel BTF handle and unloaded prototype set. Options are validated
// immediately; an invalid-argument error is returned without committing
// any state.
func New(symbols SymbolTable, kprobes KprobeSet, btfSpec *btf.Spec, protos PrototypeSet, opts Options, log *slog.Logger) (*Attacher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := platformSupported(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New(logLevelName(opts), "text", os.Stderr)
	}

	a := &Attacher{
		opts:       opts,
		log:        log,
		symbols:    symbols,
		kprobes:    kprobes,
		btfSpec:    btfSpec,
		protos:     protos,
		denyGlobs:  mustCompileEnforced(),
		allowGlobs: nil,
	}
	return a, nil
}

// logLevelName maps the Options verbosity tiers onto the level names
// internal/logger understands, matching the precedence Options.Validate
// already establishes: debug_extra implies debug implies verbose.
func logLevelName(opts Options) string {
	switch {
	case opts.DebugExtra:
		return "trace"
	case opts.Debug:
		return "debug"
	case opts.Verbose:
		return "info"
	default:
		return "warn"
	}
}

// AllowGlob adds a caller-supplied allow glob. Once at least one allow
// glob is configured, a candidate function must match at least one to be
// selected. An invalid pattern is rejected immediately; no state is
// committed on error.
func (a *Attacher) AllowGlob(pattern string) error {
	g, err := globmatch.Compile(pattern)
	if err != nil {
		return newError(ErrInvalidArgument, "invalid allow glob", err)
	}
	a.allowGlobs = append(a.allowGlobs, g)
	return nil
}

// DenyGlob adds a caller-supplied deny glob, in addition to the globs the
// Attacher always enforces. An invalid pattern is rejected immediately;
// no state is committed on error.
func (a *Attacher) DenyGlob(pattern string) error {
	g, err := globmatch.Compile(pattern)
	if err != nil {
		return newError(ErrInvalidArgument, "invalid deny glob", err)
	}
	a.denyGlobs = append(a.denyGlobs, g)
	return nil
}

// FuncCount reports the number of functions in the selection plan. It is
// zero until Prepare succeeds.
func (a *Attacher) FuncCount() int {
	return len(a.funcs)
}

// Func returns a borrowed pointer to the i-th selected function. The
// caller must not retain it past Free.
func (a *Attacher) Func(i int) *FuncInfo {
	return &a.funcs[i]
}

// BTF returns the kernel BTF handle the Attacher was constructed with.
func (a *Attacher) BTF() *btf.Spec {
	return a.btfSpec
}

// Prototypes returns the prototype set the Attacher was constructed with.
func (a *Attacher) Prototypes() PrototypeSet {
	return a.protos
}

// IPToID returns the addr-to-selection-index lookup table built during
// Load. It is nil until Load runs; after a Load that failed partway it
// holds only the entries written before the failure.
func (a *Attacher) IPToID() map[uint64]int {
	return a.ipToID
}

// Free releases every program and link owned by the Attacher. It is safe
// to call multiple times and safe to call after a partial failure at any
// stage of the pipeline.
func (a *Attacher) Free() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := range a.funcs {
		f := &a.funcs[i]
		if f.fentryLink != nil {
			f.fentryLink.Close()
			f.fentryLink = nil
		}
		if f.fexitLink != nil {
			f.fexitLink.Close()
			f.fexitLink = nil
		}
		if f.fentryProg != nil {
			f.fentryProg.Close()
			f.fentryProg = nil
		}
		if f.fexitProg != nil {
			f.fexitProg.Close()
			f.fexitProg = nil
		}
	}
	a.funcs = nil
	a.ipToID = nil
	a.loaded = false
	a.attached = false
}
