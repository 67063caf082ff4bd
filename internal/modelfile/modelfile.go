// Package modelfile implements the persisted model file format (spec §6),
// directly following serialize.c's model_load/model_save. There is no
// version byte: the opcode enumeration doubles as the format version.
package modelfile

import (
	"bufio"
	"fmt"

	"github.com/pangea-net/traincoord/internal/ast"
	"github.com/pangea-net/traincoord/internal/codec"
)

const (
	flagColumnNames = 1 << 0
	flagColumnTypes = 1 << 1
)

// Model is a trained program plus the column metadata needed to interpret
// its var(i) references.
type Model struct {
	Name         string
	ColumnNames  []string             // may be nil
	ColumnTypes  []ast.VariableKind   // may be nil
	NumInputs    int
	Root         *ast.Node
}

// Save writes: name, num_inputs, flags, optional column names, optional
// column types, then the serialized root node.
func Save(w *bufio.Writer, m *Model) error {
	if err := codec.WriteString(w, m.Name, false); err != nil {
		return err
	}
	if err := codec.WriteUvarint(w, uint64(m.NumInputs)); err != nil {
		return err
	}

	var flags byte
	if m.ColumnNames != nil {
		flags |= flagColumnNames
	}
	if m.ColumnTypes != nil {
		flags |= flagColumnTypes
	}
	if err := codec.WriteU8(w, flags); err != nil {
		return err
	}

	if m.ColumnNames != nil {
		if len(m.ColumnNames) != m.NumInputs {
			return fmt.Errorf("modelfile: %d column names, want %d", len(m.ColumnNames), m.NumInputs)
		}
		for _, name := range m.ColumnNames {
			if err := codec.WriteString(w, name, false); err != nil {
				return err
			}
		}
	}
	if m.ColumnTypes != nil {
		if len(m.ColumnTypes) != m.NumInputs {
			return fmt.Errorf("modelfile: %d column types, want %d", len(m.ColumnTypes), m.NumInputs)
		}
		for _, kind := range m.ColumnTypes {
			if err := codec.WriteUvarint(w, uint64(kind)); err != nil {
				return err
			}
		}
	}

	return codec.WriteNode(w, m.Root, false)
}

// Load reads a Model written by Save.
func Load(r *bufio.Reader) (*Model, error) {
	name, err := codec.ReadString(r)
	if err != nil {
		return nil, err
	}
	numInputsU, err := codec.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	numInputs := int(numInputsU)

	flags, err := codec.ReadU8(r)
	if err != nil {
		return nil, err
	}

	m := &Model{Name: name, NumInputs: numInputs}

	if flags&flagColumnNames != 0 {
		m.ColumnNames = make([]string, numInputs)
		for i := range m.ColumnNames {
			s, err := codec.ReadString(r)
			if err != nil {
				return nil, err
			}
			m.ColumnNames[i] = s
		}
	}
	if flags&flagColumnTypes != 0 {
		m.ColumnTypes = make([]ast.VariableKind, numInputs)
		for i := range m.ColumnTypes {
			k, err := codec.ReadUvarint(r)
			if err != nil {
				return nil, err
			}
			m.ColumnTypes[i] = ast.VariableKind(k)
		}
	}

	root, err := codec.ReadNode(r)
	if err != nil {
		return nil, err
	}
	m.Root = root

	return m, nil
}

