package ssa

// Type represents the type of an SSA value.
type Type byte

const (
	TypeInvalid Type = iota

	// TypeI32 represents an integer type with 32 bits.
	TypeI32

	// TypeI64 represents an integer type with 64 bits.
	TypeI64

	// TypeF32 represents 32-bit floats in the IEEE 754.
	TypeF32

	// TypeF64 represents 64-bit floats in the IEEE 754.
	TypeF64

	// TypePtr represents a native pointer sized integer for memory operands.
	TypePtr
)

// String implements fmt.Stringer.
func (t Type) String() (ret string) {
	switch t {
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypePtr:
		return "ptr"
	}
	return
}

// Bits returns the number of bits of values of this type.
func (t Type) Bits() byte {
	switch t {
	case TypeI32, TypeF32:
		return 32
	case TypeI64, TypeF64, TypePtr:
		return 64
	}
	return 0
}
