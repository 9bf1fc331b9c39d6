package core

// NamedValue pairs a column name with its value, in field order.
type NamedValue struct {
	Name  string
	Value Value
}

// Model is the contract every mapped entity implements. The metadata
// methods return static tables built once at program start; Fields() order
// is stable and its index doubles as the bit index in the instance's
// FieldsSet.
type Model interface {
	// TableName returns the table this model maps to.
	TableName() string
	// PrimaryKey returns the PK column names.
	PrimaryKey() []string
	// Fields returns the static field metadata in stable order.
	Fields() []FieldInfo
	// Relationships returns the static relationship metadata.
	Relationships() []RelationshipInfo
	// Inheritance returns the model's inheritance placement.
	Inheritance() InheritanceInfo
	// ToRow returns (column, value) pairs in Fields() order for storable
	// fields.
	ToRow() []NamedValue
	// PrimaryKeyValue returns the current PK values, aligned with
	// PrimaryKey().
	PrimaryKeyValue() []Value
	// IsNew reports whether the instance has not been persisted yet.
	IsNew() bool
	// ShardKeyValue returns the sharding key, if the model declares one.
	ShardKeyValue() (Value, bool)
}

// FieldByColumn resolves a storable field by column name.
func FieldByColumn(m Model, column string) (FieldInfo, bool) {
	for _, f := range m.Fields() {
		if f.ColumnName == column {
			return f, true
		}
	}
	return FieldInfo{}, false
}

// FieldIndex resolves a field's position within Fields(), -1 when absent.
func FieldIndex(m Model, name string) int {
	for i, f := range m.Fields() {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// AutoIncrementColumn returns the auto-increment PK column of m, if any.
func AutoIncrementColumn(m Model) (string, bool) {
	for _, f := range m.Fields() {
		if f.PrimaryKey && f.AutoIncrement {
			return f.ColumnName, true
		}
	}
	return "", false
}

// IsPrimaryKeyColumn reports whether column is part of m's primary key.
func IsPrimaryKeyColumn(m Model, column string) bool {
	for _, pk := range m.PrimaryKey() {
		if pk == column {
			return true
		}
	}
	return false
}
