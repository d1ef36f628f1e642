// Package btfshape implements the admissibility checker (spec component
// C3): given a BTF FUNC entry, decide whether the attach mechanism (a
// single verifier-approved fentry/fexit template per argument count) can
// support its signature at all.
package btfshape

import (
	"fmt"

	"github.com/cilium/ebpf/btf"
)

// MaxArgs is the largest parameter count the attach templates support.
// PrototypeSlot indices run [0, MaxArgs].
const MaxArgs = 11

// Shape is the admitted, qualifier-stripped signature of a function: only
// what the selection engine and the materializer need downstream.
type Shape struct {
	ArgCount int
}

// Admit resolves fn's prototype and applies the rejection rules from
// spec.md §4.3. It returns a non-nil error for the first rule that fails;
// callers in the selection engine treat any error as "skip this function",
// never as fatal.
func Admit(fn *btf.Func) (Shape, error) {
	proto, ok := fn.Type.(*btf.FuncProto)
	if !ok {
		return Shape{}, fmt.Errorf("btfshape: %s: BTF type is not a FUNC_PROTO", fn.Name)
	}

	if len(proto.Params) > MaxArgs {
		return Shape{}, fmt.Errorf("btfshape: %s: %d params exceeds the %d-arg limit", fn.Name, len(proto.Params), MaxArgs)
	}

	ret := stripQualifiers(proto.Return)
	if _, isVoid := ret.(*btf.Void); isVoid {
		return Shape{}, fmt.Errorf("btfshape: %s: void return is not attachable", fn.Name)
	}
	if !admittedReturn(ret) {
		return Shape{}, fmt.Errorf("btfshape: %s: return type %T is not an admitted kind", fn.Name, ret)
	}

	for i, p := range proto.Params {
		if p.Type == nil {
			return Shape{}, fmt.Errorf("btfshape: %s: variadic parameter at position %d", fn.Name, i)
		}
		pt := stripQualifiers(p.Type)
		if !admittedParam(pt) {
			return Shape{}, fmt.Errorf("btfshape: %s: parameter %d type %T is not an admitted kind", fn.Name, i, pt)
		}
	}

	return Shape{ArgCount: len(proto.Params)}, nil
}

// stripQualifiers walks typedef/const/volatile/restrict chains of
// arbitrary depth, visiting each link exactly once, until it reaches a
// type that carries actual shape information.
func stripQualifiers(t btf.Type) btf.Type {
	for {
		switch v := t.(type) {
		case *btf.Typedef:
			t = v.Type
		case *btf.Volatile:
			t = v.Type
		case *btf.Const:
			t = v.Type
		case *btf.Restrict:
			t = v.Type
		default:
			return t
		}
	}
}

// admittedReturn reports whether t (already qualifier-stripped) is one of
// the kinds the attach mechanism supports as a return type: integer, enum,
// or pointer-to-void / pointer-to-composite.
func admittedReturn(t btf.Type) bool {
	switch v := t.(type) {
	case *btf.Int, *btf.Enum:
		return true
	case *btf.Pointer:
		target := stripQualifiers(v.Target)
		switch target.(type) {
		case *btf.Void, *btf.Struct, *btf.Union:
			return true
		}
		return false
	default:
		return false
	}
}

// admittedParam reports whether t (already qualifier-stripped) is one of
// the kinds the attach mechanism supports as a parameter: integer,
// pointer, or enum. Unlike return types, a parameter pointer may target
// anything -- only the return-type pointer rule is restricted to
// void/composite targets.
func admittedParam(t btf.Type) bool {
	switch t.(type) {
	case *btf.Int, *btf.Pointer, *btf.Enum:
		return true
	default:
		return false
	}
}
