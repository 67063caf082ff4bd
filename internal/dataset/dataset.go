// Package dataset implements the content-addressed table of rows (C4):
// a Dataset is identified on the wire by a 20-byte hash of its serialized
// row payload.
package dataset

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"fmt"

	"github.com/pangea-net/traincoord/internal/ast"
	"github.com/pangea-net/traincoord/internal/codec"
)

// HashSize is the fixed width of a dataset's content hash.
const HashSize = 20

// Hash is the dataset's network identity.
type Hash [HashSize]byte

func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// Column describes one input's name and kind.
type Column struct {
	Name string
	Kind ast.VariableKind
}

// Dataset is a content-addressed table: rows plus column metadata plus a
// 20-byte hash computed deterministically over the serialized row payload.
type Dataset struct {
	Columns []Column
	Rows    []ast.Row
	hash    Hash
	hashSet bool
}

// New constructs a Dataset and computes its hash immediately, matching the
// invariant hash(dataset_write(d)) == d.hash.
func New(columns []Column, rows []ast.Row) (*Dataset, error) {
	d := &Dataset{Columns: columns, Rows: rows}
	if err := d.rehash(); err != nil {
		return nil, err
	}
	return d, nil
}

// Hash returns the dataset's content hash.
func (d *Dataset) Hash() Hash {
	return d.hash
}

func (d *Dataset) rehash() error {
	payload, err := d.encodeRows()
	if err != nil {
		return err
	}
	d.hash = sha1.Sum(payload)
	d.hashSet = true
	return nil
}

// encodeRows serializes the row payload only — column metadata is framing,
// not identity, so it is excluded from the hash the same way the original
// hashes only the row bytes.
func (d *Dataset) encodeRows() ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := codec.WriteUvarint(w, uint64(len(d.Rows))); err != nil {
		return nil, err
	}
	for _, row := range d.Rows {
		if err := writeRow(w, row, len(d.Columns)); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRow(w *bufio.Writer, row ast.Row, numCols int) error {
	if len(row.Inputs) != numCols {
		return fmt.Errorf("dataset: row has %d inputs, want %d", len(row.Inputs), numCols)
	}
	for _, in := range row.Inputs {
		if err := codec.WriteU8(w, byte(in.Kind)); err != nil {
			return err
		}
		switch in.Kind {
		case ast.Categorical:
			if err := codec.WriteUvarint(w, uint64(in.Category)); err != nil {
				return err
			}
		case ast.Continuous:
			if err := codec.WriteFloat32(w, in.Value); err != nil {
				return err
			}
		case ast.VarMissing:
			// no payload
		default:
			return fmt.Errorf("dataset: unknown variable kind %d", in.Kind)
		}
	}
	return nil
}

// Write serializes the full dataset (columns + rows) to w.
func Write(w *bufio.Writer, d *Dataset) error {
	if err := codec.WriteUvarint(w, uint64(len(d.Columns))); err != nil {
		return err
	}
	for _, c := range d.Columns {
		if err := codec.WriteString(w, c.Name, false); err != nil {
			return err
		}
		if err := codec.WriteU8(w, byte(c.Kind)); err != nil {
			return err
		}
	}
	if err := codec.WriteUvarint(w, uint64(len(d.Rows))); err != nil {
		return err
	}
	for _, row := range d.Rows {
		if err := writeRow(w, row, len(d.Columns)); err != nil {
			return err
		}
	}
	return nil
}

// Read deserializes a dataset written by Write and recomputes its hash.
func Read(r *bufio.Reader) (*Dataset, error) {
	numCols, err := codec.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	columns := make([]Column, numCols)
	for i := range columns {
		name, err := codec.ReadString(r)
		if err != nil {
			return nil, err
		}
		kindByte, err := codec.ReadU8(r)
		if err != nil {
			return nil, err
		}
		columns[i] = Column{Name: name, Kind: ast.VariableKind(kindByte)}
	}

	numRows, err := codec.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	rows := make([]ast.Row, numRows)
	for i := range rows {
		row, err := readRow(r, int(numCols))
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}

	return New(columns, rows)
}

func readRow(r *bufio.Reader, numCols int) (ast.Row, error) {
	inputs := make([]ast.Variable, numCols)
	for i := range inputs {
		kindByte, err := codec.ReadU8(r)
		if err != nil {
			return ast.Row{}, err
		}
		kind := ast.VariableKind(kindByte)
		switch kind {
		case ast.Categorical:
			c, err := codec.ReadUvarint(r)
			if err != nil {
				return ast.Row{}, err
			}
			inputs[i] = ast.Variable{Kind: kind, Category: uint32(c)}
		case ast.Continuous:
			f, err := codec.ReadFloat32(r)
			if err != nil {
				return ast.Row{}, err
			}
			inputs[i] = ast.Variable{Kind: kind, Value: f}
		case ast.VarMissing:
			inputs[i] = ast.Variable{Kind: kind}
		default:
			return ast.Row{}, fmt.Errorf("dataset: unknown variable kind %d", kindByte)
		}
	}
	return ast.Row{Inputs: inputs}, nil
}
