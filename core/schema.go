package core

import "fmt"

// FieldType enumerates the column types the indexer understands.
type FieldType int

const (
	FieldTypeInt FieldType = iota
	FieldTypeFloat
	FieldTypeString
	FieldTypeBool
)

// String returns a human-readable name for the field type.
func (ft FieldType) String() string {
	switch ft {
	case FieldTypeInt:
		return "Int"
	case FieldTypeFloat:
		return "Float"
	case FieldTypeString:
		return "String"
	case FieldTypeBool:
		return "Bool"
	default:
		return "Unknown"
	}
}

// Column is one named, typed column of a table schema.
type Column struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Schema is the ordered column list of a table.
// Order matters: rows are positional.
type Schema []Column

// IndexOf returns the position of the named column, or -1.
func (s Schema) IndexOf(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Validate checks that the row arity matches the schema.
func (s Schema) Validate(row Row) error {
	if len(row) != len(s) {
		return fmt.Errorf("row has %d values, schema has %d columns", len(row), len(s))
	}
	return nil
}

// Row is one positional record. Values align with the table schema.
// A nil value represents SQL NULL.
type Row []any
