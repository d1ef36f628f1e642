package attacher

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/btf"
	"github.com/cilium/ebpf/link"
)

// MaxArgs mirrors btfshape.MaxArgs; repeated here as the attacher's own
// slot-table bound so callers of this package never need to import
// pkg/btfshape directly.
const MaxArgs = 11

// Direction distinguishes the two tracing probes materialized per
// selected function.
type Direction int

const (
	DirectionEntry Direction = iota
	DirectionExit
)

func (d Direction) String() string {
	if d == DirectionEntry {
		return "fentry"
	}
	return "fexit"
}

// FuncInfo is one selected kernel function: its identity (addr, name,
// BTF id), its arity, and the attach handles opened for it during Load
// and Attach. FentryFD/FexitFD report -1 until a program is cloned.
type FuncInfo struct {
	Addr     uint64
	Name     string
	BTFID    btf.TypeID
	ArgCount int

	fentryProg *ebpf.Program
	fexitProg  *ebpf.Program
	fentryLink link.Link
	fexitLink  link.Link
}

// FentryFD reports the kernel file descriptor of the entry program, or -1
// if it has not been cloned yet.
func (f *FuncInfo) FentryFD() int {
	if f.fentryProg == nil {
		return -1
	}
	return f.fentryProg.FD()
}

// FexitFD reports the kernel file descriptor of the exit program, or -1
// if it has not been cloned yet.
func (f *FuncInfo) FexitFD() int {
	if f.fexitProg == nil {
		return -1
	}
	return f.fexitProg.FD()
}

// PrototypeSlot holds the verifier-approved instruction streams for one
// (direction pair, arity) bucket, captured once from the caller-supplied
// prototype set during Load and cloned once per selected function that
// falls in this bucket.
type PrototypeSlot struct {
	// ArgCount is this slot's arity, set once it is captured; cloneProgram
	// reads it back off the FuncInfo's own ArgCount to find its slot.
	ArgCount int

	fentrySpec *ebpf.ProgramSpec
	fexitSpec  *ebpf.ProgramSpec

	// captured is true once Load has copied this slot's instruction
	// streams out of the prototype set. cloneProgram refuses to clone
	// against an uncaptured slot.
	captured      bool
	consumerCount int
	// templateIndex is the index into Attacher.funcs of the first
	// selected function with this arity -- the representative target
	// the prototype's own attach point is retargeted to before a debug
	// load, since the verifier requires a concrete attach_btf_id even
	// though every clone retargets again.
	templateIndex int
}
