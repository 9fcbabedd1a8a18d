package cards

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DataType is the type of a data item or template slot.
type DataType string

const (
	DataTypeText    DataType = "text"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeColor   DataType = "color"
)

var colorPattern = regexp.MustCompile(`^#([0-9a-f]{3}|[0-9a-f]{6}|[0-9a-f]{8})$`)

// Value is a typed value stored against a data item.
// Values are normalized by NewValue so equal inputs compare equal.
type Value struct {
	Type  DataType `json:"type"`
	Value string   `json:"value"`
}

// NewValue validates raw against the data type and returns the normalized value.
func NewValue(dataType DataType, raw string) (Value, error) {
	v := Value{Type: dataType, Value: raw}
	switch dataType {
	case DataTypeText:
	case DataTypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a number", ErrInvalidValue, raw)
		}
		v.Value = strconv.FormatFloat(f, 'f', -1, 64)
	case DataTypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a boolean", ErrInvalidValue, raw)
		}
		v.Value = strconv.FormatBool(b)
	case DataTypeColor:
		c := strings.ToLower(strings.TrimSpace(raw))
		if !colorPattern.MatchString(c) {
			return Value{}, fmt.Errorf("%w: %q is not a hex color", ErrInvalidValue, raw)
		}
		v.Value = c
	default:
		return Value{}, fmt.Errorf("%w: unknown data type %q", ErrInvalidValue, dataType)
	}
	return v, nil
}

// Validate reports whether the value is well formed for its type.
func (v Value) Validate() error {
	_, err := NewValue(v.Type, v.Value)
	return err
}

// TextValue is shorthand for a text value, which never fails validation.
func TextValue(s string) Value {
	return Value{Type: DataTypeText, Value: s}
}
