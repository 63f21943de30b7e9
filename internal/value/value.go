// Package value implements the runtime value representation shared by the
// compiler and the VM: a tagged union over number, bool, nil and heap
// object references, the heap object header, the interned string object,
// and the open-addressing table used both for the intern table and for
// the VM's global environment.
package value

import (
	"fmt"
	"strconv"
)

type ValueType int

const (
	VAL_BOOL ValueType = iota
	VAL_NIL
	VAL_NUMBER
	VAL_OBJ
)

// Value is the tagged union every stack slot and constant-pool entry
// holds. It is small and copied by value so the operand stack can stay a
// flat array rather than a slice of interfaces.
type Value struct {
	Type     ValueType
	AsBool   bool
	AsNumber float64
	Obj      *Object
}

func NewBool(b bool) Value      { return Value{Type: VAL_BOOL, AsBool: b} }
func NewNil() Value             { return Value{Type: VAL_NIL} }
func NewNumber(n float64) Value { return Value{Type: VAL_NUMBER, AsNumber: n} }
func NewObj(o *Object) Value    { return Value{Type: VAL_OBJ, Obj: o} }

// IsFalsey reports whether v is falsy: nil or boolean false. Every other
// value, including 0 and the empty string, is truthy.
func IsFalsey(v Value) bool {
	return v.Type == VAL_NIL || (v.Type == VAL_BOOL && !v.AsBool)
}

// Equal implements the language's equality: same tag, equal payload.
// Object references (always interned strings in this core) compare by
// identity, which is what makes interning observable to the language.
func Equal(a, b Value) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case VAL_NIL:
		return true
	case VAL_BOOL:
		return a.AsBool == b.AsBool
	case VAL_NUMBER:
		return a.AsNumber == b.AsNumber
	case VAL_OBJ:
		return a.Obj == b.Obj
	default:
		return false
	}
}

func (v Value) IsString() bool {
	return v.Type == VAL_OBJ && v.Obj != nil && v.Obj.Kind == ObjString
}

// AsString returns the interned string payload. The caller must have
// checked IsString first; this mirrors clox's AS_STRING macro, which is
// also unchecked.
func (v Value) AsString() string {
	return v.Obj.Str
}

func (v Value) String() string {
	switch v.Type {
	case VAL_NIL:
		return "nil"
	case VAL_BOOL:
		if v.AsBool {
			return "true"
		}
		return "false"
	case VAL_NUMBER:
		return strconv.FormatFloat(v.AsNumber, 'g', -1, 64)
	case VAL_OBJ:
		return v.Obj.String()
	default:
		return fmt.Sprintf("<invalid value %d>", v.Type)
	}
}
