package attacher

// defaultMaxFilenoRlimit is used when Options.MaxFilenoRlimit is zero.
const defaultMaxFilenoRlimit = 300_000

// FuncFilter is the caller's last gate in the selection pipeline. It is
// invoked with the kernel BTF id and name of a candidate that has already
// passed every other check, plus the index it would receive in the plan.
// Returning false skips the candidate.
type FuncFilter func(btfID uint32, name string, selectedIndex int) bool

// Options configures an Attacher at construction time. The zero value is
// valid except where noted; Validate is called from New.
type Options struct {
	// MaxFuncCnt is a hard cap on the number of selected functions. Zero
	// means unlimited.
	MaxFuncCnt int
	// MaxFilenoRlimit is the open-file limit Load raises the process to.
	// Zero means the default of 300,000.
	MaxFilenoRlimit uint64
	// Verbose enables info-level logging.
	Verbose bool
	// Debug enables debug-level logging and implies Verbose. It also
	// causes the materializer to really load each prototype program (to
	// surface verifier diagnostics) instead of only capturing its
	// instructions.
	Debug bool
	// DebugExtra enables per-clone, per-function trace logging during
	// materialization. Implies Debug.
	DebugExtra bool
	// FuncFilter is an optional caller predicate, the final gate applied
	// to a candidate function during Prepare.
	FuncFilter FuncFilter
}

// Validate checks Options for internal consistency and fills in defaults.
// It returns an invalid-argument error when MaxFuncCnt is negative; every
// other field has a valid zero value. It is the single place option values
// are checked, matching the validate-at-construction posture the rest of
// this codebase follows for glob compilation and BTF admission.
func (o *Options) Validate() error {
	if o.MaxFuncCnt < 0 {
		return newError(ErrInvalidArgument, "MaxFuncCnt must not be negative", nil)
	}
	if o.DebugExtra {
		o.Debug = true
	}
	if o.Debug {
		o.Verbose = true
	}
	if o.MaxFilenoRlimit == 0 {
		o.MaxFilenoRlimit = defaultMaxFilenoRlimit
	}
	return nil
}
