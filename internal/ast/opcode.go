// Package ast implements the prediction-program tree: a closed enumeration
// of opcodes paired with a dispatch table, replacing the virtual-table
// nodetype_t{name,flags,min,max,eval} pattern with a plain Go switch.
package ast

// Opcode identifies a node's operator. It is the wire-format version
// token: opcode numbers must never change across releases.
type Opcode uint8

const (
	OpRoot Opcode = iota
	OpIf
	OpAdd
	OpLt
	OpGt
	OpIn
	OpVar
	OpCategory
	OpFloat
	OpInt
	OpBool
	OpString
	OpArray
	OpConstant
	OpSetLocal
	OpGetLocal
)

// info describes one opcode's shape: whether it carries an embedded value,
// whether it has children, and the bounds on child count.
type info struct {
	name       string
	hasValue   bool
	hasChildren bool
	minArgs    int
	maxArgs    int
}

var opcodeInfo = map[Opcode]info{
	OpRoot:     {name: "root", hasChildren: true, minArgs: 1, maxArgs: 1},
	OpIf:       {name: "if", hasChildren: true, minArgs: 3, maxArgs: 3},
	OpAdd:      {name: "add", hasChildren: true, minArgs: 2, maxArgs: 2},
	OpLt:       {name: "lt", hasChildren: true, minArgs: 2, maxArgs: 2},
	OpGt:       {name: "gt", hasChildren: true, minArgs: 2, maxArgs: 2},
	OpIn:       {name: "in", hasChildren: true, minArgs: 2, maxArgs: 2},
	OpVar:      {name: "var", hasValue: true, minArgs: 0, maxArgs: 0},
	OpCategory: {name: "category", hasValue: true, minArgs: 0, maxArgs: 0},
	OpFloat:    {name: "float", hasValue: true, minArgs: 0, maxArgs: 0},
	OpInt:      {name: "int", hasValue: true, minArgs: 0, maxArgs: 0},
	OpBool:     {name: "bool", hasValue: true, minArgs: 0, maxArgs: 0},
	OpString:   {name: "string", hasValue: true, minArgs: 0, maxArgs: 0},
	OpArray:    {name: "array", hasValue: true, minArgs: 0, maxArgs: 0},
	OpConstant: {name: "constant", hasValue: true, minArgs: 0, maxArgs: 0},
	OpSetLocal: {name: "setlocal", hasValue: true, minArgs: 0, maxArgs: 0},
	OpGetLocal: {name: "getlocal", hasValue: true, minArgs: 0, maxArgs: 0},
}

func (op Opcode) Name() string {
	if i, ok := opcodeInfo[op]; ok {
		return i.name
	}
	return "unknown"
}

func (op Opcode) HasValue() bool    { return opcodeInfo[op].hasValue }
func (op Opcode) HasChildren() bool { return opcodeInfo[op].hasChildren }
func (op Opcode) MinArgs() int      { return opcodeInfo[op].minArgs }
func (op Opcode) MaxArgs() int      { return opcodeInfo[op].maxArgs }

// FixedArgs reports whether min==max, meaning child count is implicit and
// never serialized.
func (op Opcode) FixedArgs() bool {
	i := opcodeInfo[op]
	return i.minArgs == i.maxArgs
}

func (op Opcode) Valid() bool {
	_, ok := opcodeInfo[op]
	return ok
}
