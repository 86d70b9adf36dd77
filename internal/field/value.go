package field

import "fmt"

// TypedValue is a tagged value: exactly one of the four fields below is
// meaningful, selected by Kind.
type TypedValue struct {
	Kind        Kind
	StringVal   string
	IntVal      int64
	BoolVal     bool
	StringArray []string
}

// NewString builds a TypedValue of kind KindString.
func NewString(s string) TypedValue { return TypedValue{Kind: KindString, StringVal: s} }

// NewInt builds a TypedValue of kind KindInt.
func NewInt(n int64) TypedValue { return TypedValue{Kind: KindInt, IntVal: n} }

// NewBool builds a TypedValue of kind KindBool.
func NewBool(b bool) TypedValue { return TypedValue{Kind: KindBool, BoolVal: b} }

// NewStringArray builds a TypedValue of kind KindStringArray.
func NewStringArray(xs []string) TypedValue {
	return TypedValue{Kind: KindStringArray, StringArray: xs}
}

// Any returns the value as an interface{} suitable for a database/sql
// query parameter.
func (v TypedValue) Any() any {
	switch v.Kind {
	case KindString:
		return v.StringVal
	case KindInt:
		return v.IntVal
	case KindBool:
		return v.BoolVal
	case KindStringArray:
		return v.StringVal // never queried directly; callers join first
	default:
		return nil
	}
}

// String renders the value the way Filter.Contains needs it: as a plain
// string, regardless of kind.
func (v TypedValue) String() string {
	switch v.Kind {
	case KindString:
		return v.StringVal
	case KindInt:
		return fmt.Sprintf("%d", v.IntVal)
	case KindBool:
		return fmt.Sprintf("%t", v.BoolVal)
	case KindStringArray:
		return fmt.Sprintf("%v", v.StringArray)
	default:
		return ""
	}
}

// ValueField pairs a Field with a TypedValue. The invariant enforced by the
// constructors below is that the TypedValue's Kind matches KindOf(field).
type ValueField struct {
	field Field
	value TypedValue
}

// NewValueField builds a ValueField and panics if the kinds disagree — this
// is a programmer error (an invariant violation), not a recoverable runtime
// condition, so it is caught as early as possible.
func NewValueField(f Field, v TypedValue) ValueField {
	if KindOf(f) != v.Kind {
		panic(fmt.Sprintf("field/value kind mismatch: %s expects %d, got %d", f, KindOf(f), v.Kind))
	}
	return ValueField{field: f, value: v}
}

// String builds a ValueField holding a string value.
func String(f Field, s string) ValueField { return NewValueField(f, NewString(s)) }

// Int builds a ValueField holding an integer value.
func Int(f Field, n int64) ValueField { return NewValueField(f, NewInt(n)) }

// Bool builds a ValueField holding a boolean value.
func Bool(f Field, b bool) ValueField { return NewValueField(f, NewBool(b)) }

// StringArray builds a ValueField holding a string-array value.
func StringArray(f Field, xs []string) ValueField { return NewValueField(f, NewStringArray(xs)) }

func (vf ValueField) Field() Field           { return vf.field }
func (vf ValueField) Value() TypedValue      { return vf.value }
func (vf ValueField) AsString() string       { return vf.value.String() }
