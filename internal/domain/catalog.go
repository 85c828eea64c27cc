package domain

import (
	"time"

	"github.com/google/uuid"
)

// DataType is the declared type of a condition field.
type DataType string

const (
	DataTypeString      DataType = "string"
	DataTypeNumber      DataType = "number"
	DataTypeBoolean     DataType = "boolean"
	DataTypeArrayString DataType = "array_string"
	DataTypeDatetime    DataType = "datetime"
)

// allowedOperators maps every data type to its operator set. A condition
// leaf whose operator is outside its type's set is malformed and must be
// rejected before the policy is persisted.
var allowedOperators = map[DataType][]string{
	DataTypeString:      {"equals", "contains", "in"},
	DataTypeNumber:      {"eq", "gt", "lt", "between"},
	DataTypeBoolean:     {"eq"},
	DataTypeArrayString: {"contains", "in"},
	DataTypeDatetime:    {"before", "after", "between"},
}

// Valid reports whether the data type is known.
func (d DataType) Valid() bool {
	_, ok := allowedOperators[d]
	return ok
}

// Operators returns the allowed operator set for the data type.
func (d DataType) Operators() []string {
	return allowedOperators[d]
}

// AllowsOperator reports whether op is valid for the data type.
func (d DataType) AllowsOperator(op string) bool {
	for _, o := range allowedOperators[d] {
		if o == op {
			return true
		}
	}
	return false
}

// ConditionField is one catalog entry: a field that condition leaves may
// reference, with its declared type. Operators defaults to the type's
// full set when empty.
type ConditionField struct {
	Field     string   `json:"field" db:"field"`
	Label     string   `json:"label" db:"label"`
	DataType  DataType `json:"data_type" db:"data_type"`
	Operators []string `json:"operators,omitempty" db:"-"`
}

// AllowsOperator checks op against the field's own operator list when
// present, falling back to the data type's set.
func (f ConditionField) AllowsOperator(op string) bool {
	if len(f.Operators) == 0 {
		return f.DataType.AllowsOperator(op)
	}
	for _, o := range f.Operators {
		if o == op {
			return true
		}
	}
	return false
}

// ResourceType is a catalog of attribute fields for one kind of
// resource (device, contract, consumable, ...). Policy condition leaves
// are validated against it before save.
type ResourceType struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	Key       string           `json:"key" db:"key"`
	Name      string           `json:"name" db:"name"`
	Fields    []ConditionField `json:"fields" db:"-"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

// FieldByName returns the catalog entry for field, or nil.
func (rt *ResourceType) FieldByName(field string) *ConditionField {
	for i := range rt.Fields {
		if rt.Fields[i].Field == field {
			return &rt.Fields[i]
		}
	}
	return nil
}
