package core

// DynamicModel maps a table whose shape is only known at runtime. It trades
// static typing for flexibility but satisfies the same Model contract, so
// builders and sessions treat it like any generated model.
type DynamicModel struct {
	table     string
	fields    []FieldInfo
	rels      []RelationshipInfo
	inherit   InheritanceInfo
	values    map[string]Value
	related   map[string][]Row
	persisted bool
	shardKey  string
}

// NewDynamicModel creates an empty dynamic model for the given table.
func NewDynamicModel(table string) *DynamicModel {
	return &DynamicModel{
		table:   table,
		inherit: NoInheritance(),
		values:  make(map[string]Value),
	}
}

// AddField appends a field definition.
func (m *DynamicModel) AddField(f FieldInfo) *DynamicModel {
	m.fields = append(m.fields, f)
	return m
}

// AddRelationship appends a relationship definition.
func (m *DynamicModel) AddRelationship(r RelationshipInfo) *DynamicModel {
	m.rels = append(m.rels, r)
	return m
}

// SetInheritance sets the inheritance placement.
func (m *DynamicModel) SetInheritance(info InheritanceInfo) *DynamicModel {
	m.inherit = info
	return m
}

// SetShardKey names the field whose value shards this model.
func (m *DynamicModel) SetShardKey(field string) *DynamicModel {
	m.shardKey = field
	return m
}

// Set assigns a column value.
func (m *DynamicModel) Set(column string, v Value) *DynamicModel {
	m.values[column] = v
	return m
}

// Get reads a column value; absent columns read as NULL.
func (m *DynamicModel) Get(column string) Value {
	if v, ok := m.values[column]; ok {
		return v
	}
	return Null()
}

// SetColumn assigns a column value without the builder-style return.
func (m *DynamicModel) SetColumn(column string, v Value) {
	m.Set(column, v)
}

// MarkPersisted flips the instance out of the "new" state, typically after
// a successful flush back-fills the generated key.
func (m *DynamicModel) MarkPersisted() {
	m.persisted = true
}

// TableName implements Model.
func (m *DynamicModel) TableName() string { return m.table }

// PrimaryKey implements Model.
func (m *DynamicModel) PrimaryKey() []string {
	var pk []string
	for _, f := range m.fields {
		if f.PrimaryKey {
			pk = append(pk, f.ColumnName)
		}
	}
	return pk
}

// Fields implements Model.
func (m *DynamicModel) Fields() []FieldInfo { return m.fields }

// Relationships implements Model.
func (m *DynamicModel) Relationships() []RelationshipInfo { return m.rels }

// Inheritance implements Model.
func (m *DynamicModel) Inheritance() InheritanceInfo { return m.inherit }

// ToRow implements Model: storable fields in declaration order.
func (m *DynamicModel) ToRow() []NamedValue {
	out := make([]NamedValue, 0, len(m.fields))
	for _, f := range m.fields {
		if !f.Storable() {
			continue
		}
		out = append(out, NamedValue{Name: f.ColumnName, Value: m.Get(f.ColumnName)})
	}
	return out
}

// PrimaryKeyValue implements Model.
func (m *DynamicModel) PrimaryKeyValue() []Value {
	pk := m.PrimaryKey()
	out := make([]Value, len(pk))
	for i, col := range pk {
		out[i] = m.Get(col)
	}
	return out
}

// IsNew implements Model: never persisted and no concrete PK value.
func (m *DynamicModel) IsNew() bool {
	if m.persisted {
		return false
	}
	for _, v := range m.PrimaryKeyValue() {
		if !v.IsNull() {
			return false
		}
	}
	return true
}

// ShardKeyValue implements Model.
func (m *DynamicModel) ShardKeyValue() (Value, bool) {
	if m.shardKey == "" {
		return Null(), false
	}
	for _, f := range m.fields {
		if f.Name == m.shardKey || f.ColumnName == m.shardKey {
			return m.Get(f.ColumnName), true
		}
	}
	return Null(), false
}

// SetRelated stores loaded related rows under a relationship name.
func (m *DynamicModel) SetRelated(name string, rows []Row) {
	if m.related == nil {
		m.related = make(map[string][]Row)
	}
	m.related[name] = rows
}

// RelatedRows returns rows previously attached by a batch load. The second
// return reports whether the relationship was loaded at all.
func (m *DynamicModel) RelatedRows(name string) ([]Row, bool) {
	rows, ok := m.related[name]
	return rows, ok
}

// FromRow populates column values from a result row, matching columns by
// name. Unmatched columns in the row are ignored.
func (m *DynamicModel) FromRow(r Row) {
	for _, f := range m.fields {
		if v, ok := r.Named(f.ColumnName); ok {
			m.values[f.ColumnName] = v
		}
	}
	m.persisted = true
}
