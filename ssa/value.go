package ssa

import (
	"fmt"
	"math"
)

// Value represents an SSA value with a type information. Each Value is defined
// exactly once, either by an Instruction or as a parameter of a basicBlock.
//
// Higher 32-bit is used to store Type for this value.
type Value uint64

// valueID is the lower 32bit of Value, which is the pure identifier of Value without type info.
type valueID uint32

const valueIDInvalid valueID = math.MaxUint32

// ValueInvalid is an invalid value which is used as a placeholder.
const ValueInvalid Value = Value(valueIDInvalid)

// Type returns the Type of this value.
func (v Value) Type() Type {
	return Type(v >> 32)
}

// Valid returns true if this value is valid.
func (v Value) Valid() bool {
	return v.id() != valueIDInvalid
}

// id returns the valueID of this value.
func (v Value) id() valueID {
	return valueID(v)
}

// setType sets a type of this Value.
func (v Value) setType(typ Type) Value {
	return v | Value(typ)<<32
}

// format creates a debug string for this Value using the data stored in Builder.
func (v Value) format(b Builder) string {
	if annotation, ok := b.(*builder).valueAnnotations[v.id()]; ok {
		return annotation
	}
	return fmt.Sprintf("v%d", v.id())
}

func (v Value) formatWithType(b Builder) string {
	if annotation, ok := b.(*builder).valueAnnotations[v.id()]; ok {
		return annotation + ":" + v.Type().String()
	}
	return fmt.Sprintf("v%d:%s", v.id(), v.Type())
}

// valueOrigin records where a Value is defined, either an instruction result
// or a block parameter.
type valueOrigin struct {
	instr *Instruction
	blk   *basicBlock
}

func (o valueOrigin) isBlockParam() bool {
	return o.blk != nil
}
