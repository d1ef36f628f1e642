package attacher

import (
	"context"
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/rlimit"
	"golang.org/x/sys/unix"

	"github.com/qmonnet/retsnoop-go/internal/logger"
)

// license is the only license string the kernel verifier accepts for
// tracing programs that call GPL-only helpers.
const license = "Dual BSD/GPL"

// Load raises the process resource limits, captures the verifier-approved
// instruction stream for every prototype slot with at least one consumer,
// and clones one program per direction for every selected function,
// retargeting each clone's attach point at that function. It must be
// called exactly once, after Prepare and before Attach.
func (a *Attacher) Load() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.prepared {
		return newError(ErrInvalidArgument, "Load called before Prepare", nil)
	}
	if a.loaded {
		return newError(ErrInvalidArgument, "Load called more than once", nil)
	}

	if err := rlimit.RemoveMemlock(); err != nil {
		return newError(ErrResource, "removing memlock rlimit", err)
	}
	rLimit := &unix.Rlimit{Cur: a.opts.MaxFilenoRlimit, Max: a.opts.MaxFilenoRlimit}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, rLimit); err != nil {
		return newError(ErrResource, "raising open-file rlimit", err)
	}

	if err := a.captureSlots(); err != nil {
		return err
	}

	a.ipToID = make(map[uint64]int, len(a.funcs))
	for i := range a.funcs {
		f := &a.funcs[i]
		a.ipToID[f.Addr] = i

		fentryProg, err := a.cloneProgram(f, DirectionEntry)
		if err != nil {
			return newError(ErrVerifier, fmt.Sprintf("cloning fentry program for %s", f.Name), err)
		}
		f.fentryProg = fentryProg

		fexitProg, err := a.cloneProgram(f, DirectionExit)
		if err != nil {
			return newError(ErrVerifier, fmt.Sprintf("cloning fexit program for %s", f.Name), err)
		}
		f.fexitProg = fexitProg
	}

	a.loaded = true
	return nil
}

// captureSlots copies the prototype instruction streams into the
// per-arity slots that have at least one consumer. Slots with zero
// consumers are left uncaptured and their prototypes are never loaded, in
// either debug or non-debug mode.
func (a *Attacher) captureSlots() error {
	for argCount := 0; argCount <= MaxArgs; argCount++ {
		slot := &a.slots[argCount]
		if slot.consumerCount == 0 {
			continue
		}

		fentrySpec := a.protos.Slot(DirectionEntry, argCount)
		fexitSpec := a.protos.Slot(DirectionExit, argCount)
		if fentrySpec == nil || fexitSpec == nil {
			return newError(ErrNotFound, fmt.Sprintf("no prototype authored for arg count %d", argCount), nil)
		}
		slot.fentrySpec = fentrySpec.Copy()
		slot.fexitSpec = fexitSpec.Copy()
		slot.ArgCount = argCount
		slot.captured = true

		if a.opts.Debug {
			template := a.funcs[slot.templateIndex].Name
			if err := a.debugLoad(fentrySpec, template); err != nil {
				return err
			}
			if err := a.debugLoad(fexitSpec, template); err != nil {
				return err
			}
		}
	}
	return nil
}

// debugLoad really loads a prototype program, purely so the kernel
// verifier's rejection diagnostics surface through the returned
// *ebpf.VerifierError, then discards it without using it for any clone. The
// prototype is retargeted at attachTo first -- the verifier requires a
// concrete attach_btf_id, and the caller-authored AttachTo on the shared
// spec is not guaranteed to name a selected function.
func (a *Attacher) debugLoad(spec *ebpf.ProgramSpec, attachTo string) error {
	loaded := *spec
	loaded.AttachTo = attachTo

	prog, err := ebpf.NewProgramWithOptions(&loaded, ebpf.ProgramOptions{
		KernelTypes: a.protos.KernelTypes(),
	})
	if err != nil {
		return newError(ErrVerifier, "loading prototype in debug mode", err)
	}
	prog.Close()
	return nil
}

// cloneProgram submits a new program to the kernel for f's direction,
// copying the slot's instructions and attach type and setting
// attach_btf_id by retargeting AttachTo at f.Name.
func (a *Attacher) cloneProgram(f *FuncInfo, dir Direction) (*ebpf.Program, error) {
	slot := &a.slots[f.ArgCount]
	if !slot.captured {
		return nil, newError(ErrInvalidArgument, fmt.Sprintf("prototype slot for arg count %d was never captured", f.ArgCount), nil)
	}
	var base *ebpf.ProgramSpec
	if dir == DirectionEntry {
		base = slot.fentrySpec
	} else {
		base = slot.fexitSpec
	}

	spec := *base
	spec.AttachTo = f.Name
	spec.License = license

	if a.opts.DebugExtra {
		a.log.Log(context.Background(), logger.LevelTrace, "cloning probe",
			"direction", dir.String(), "function", f.Name, "arg_count", slot.ArgCount)
	}

	return ebpf.NewProgramWithOptions(&spec, ebpf.ProgramOptions{
		KernelTypes: a.protos.KernelTypes(),
	})
}

// Attach opens a tracing attach handle against every cloned program. A
// per-function failure is logged and the loop continues, since the kernel
// function set can drift between Prepare and Attach; Attach only fails
// outright if every single attach attempt in the run failed.
func (a *Attacher) Attach() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.loaded {
		return newError(ErrInvalidArgument, "Attach called before Load", nil)
	}

	attachedCount := 0
	for i := range a.funcs {
		f := &a.funcs[i]

		fentryLink, err := link.AttachTracing(link.TracingOptions{
			Program:    f.fentryProg,
			AttachType: ebpf.AttachTraceFEntry,
		})
		if err != nil {
			a.log.Warn("attaching fentry probe failed", "name", f.Name, "error", err)
		} else {
			f.fentryLink = fentryLink
			attachedCount++
		}

		fexitLink, err := link.AttachTracing(link.TracingOptions{
			Program:    f.fexitProg,
			AttachType: ebpf.AttachTraceFExit,
		})
		if err != nil {
			a.log.Warn("attaching fexit probe failed", "name", f.Name, "error", err)
		} else {
			f.fexitLink = fexitLink
			attachedCount++
		}
	}

	a.attached = true
	if attachedCount == 0 {
		return newError(ErrKernel, "every attach attempt failed", nil)
	}
	return nil
}

// Activate writes true to the shared activation flag, which every cloned
// probe reads on entry before doing useful work. It is write-once: calling
// it again after it has already flipped the flag is a no-op.
func (a *Attacher) Activate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.activated {
		return nil
	}
	if !a.attached {
		return newError(ErrInvalidArgument, "Activate called before Attach", nil)
	}

	m := a.protos.ActivationMap()
	var key uint32
	var value uint32 = 1
	if err := m.Put(key, value); err != nil {
		return newError(ErrKernel, "writing activation flag", err)
	}

	a.activated = true
	return nil
}
