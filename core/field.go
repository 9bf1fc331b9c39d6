package core

// ReferentialAction is the ON DELETE / ON UPDATE action of a foreign key.
type ReferentialAction int

const (
	// NoAction is the default referential action.
	NoAction ReferentialAction = iota
	// Restrict forbids the referencing change.
	Restrict
	// Cascade propagates the change.
	Cascade
	// SetNull sets the referencing column to NULL.
	SetNull
	// SetDefault sets the referencing column to its default.
	SetDefault
)

// SQL returns the action keyword.
func (a ReferentialAction) SQL() string {
	switch a {
	case Restrict:
		return "RESTRICT"
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}

// FieldInfo is the static per-field metadata record of a model. Instances
// are built once at program start (typically as package-level tables) and
// never mutated afterwards.
type FieldInfo struct {
	// Name is the Go-side field name.
	Name string
	// ColumnName is the database column name.
	ColumnName string
	// Type is the dialect-neutral SQL type.
	Type SqlType
	// TypeOverride replaces the default SQL spelling in DDL when non-empty.
	TypeOverride string
	// Table qualifies the column for joined-inheritance models; empty means
	// the model's own table.
	Table string

	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	// DefaultSQL is a raw default expression for DDL.
	DefaultSQL string
	// ForeignKey is a "table.column" reference, empty when absent.
	ForeignKey string
	OnDelete   ReferentialAction
	OnUpdate   ReferentialAction
	// Index names a single-column index to create, empty when absent.
	Index string

	// Alias applies to both input and output unless a more specific alias
	// is set.
	Alias string
	// ValidationAlias is accepted on input in addition to Name and Alias.
	ValidationAlias string
	// SerializationAlias wins over Alias for output.
	SerializationAlias string

	// Computed fields are never stored; the application populates them on
	// read. They never appear in INSERT/UPDATE column lists.
	Computed bool
	// Exclude removes the field from every serialized dump.
	Exclude bool
	// Const fields are immutable after creation and rejected by the UPDATE
	// builder.
	Const bool
	// HasDefault marks fields that may be omitted on input.
	HasDefault bool
	// DefaultJSON is the JSON form of the default, for exclude_defaults.
	DefaultJSON string

	// Title, Description and SchemaExtra feed JSON Schema generation.
	Title       string
	Description string
	SchemaExtra string

	// ColumnConstraints are extra column-level constraints (CHECK ...).
	ColumnConstraints []string
	// Comment is a SQL comment attached to the column.
	Comment string
	// Info is a free-form metadata string.
	Info string

	// HybridSQL is the SQL expression of a hybrid property.
	HybridSQL string
	// Discriminator names the field discriminating a union-typed field.
	Discriminator string
}

// NewField builds a field with the given names and type. The remaining
// attributes follow through the chained setters.
func NewField(name, column string, t SqlType) FieldInfo {
	return FieldInfo{Name: name, ColumnName: column, Type: t}
}

// WithNullable sets the nullable flag.
func (f FieldInfo) WithNullable(v bool) FieldInfo { f.Nullable = v; return f }

// WithPrimaryKey sets the primary-key flag.
func (f FieldInfo) WithPrimaryKey(v bool) FieldInfo { f.PrimaryKey = v; return f }

// WithAutoIncrement sets the auto-increment flag.
func (f FieldInfo) WithAutoIncrement(v bool) FieldInfo { f.AutoIncrement = v; return f }

// WithUnique sets the uniqueness flag.
func (f FieldInfo) WithUnique(v bool) FieldInfo { f.Unique = v; return f }

// WithDefaultSQL sets the default SQL expression.
func (f FieldInfo) WithDefaultSQL(expr string) FieldInfo { f.DefaultSQL = expr; return f }

// WithForeignKey sets the foreign key reference ("table.column", or a bare
// table name referencing its "id" column).
func (f FieldInfo) WithForeignKey(ref string) FieldInfo { f.ForeignKey = ref; return f }

// WithOnDelete sets the ON DELETE action.
func (f FieldInfo) WithOnDelete(a ReferentialAction) FieldInfo { f.OnDelete = a; return f }

// WithOnUpdate sets the ON UPDATE action.
func (f FieldInfo) WithOnUpdate(a ReferentialAction) FieldInfo { f.OnUpdate = a; return f }

// WithIndex names a single-column index.
func (f FieldInfo) WithIndex(name string) FieldInfo { f.Index = name; return f }

// WithAlias sets the general alias.
func (f FieldInfo) WithAlias(name string) FieldInfo { f.Alias = name; return f }

// WithValidationAlias sets the input-only alias.
func (f FieldInfo) WithValidationAlias(name string) FieldInfo { f.ValidationAlias = name; return f }

// WithSerializationAlias sets the output-only alias.
func (f FieldInfo) WithSerializationAlias(name string) FieldInfo {
	f.SerializationAlias = name
	return f
}

// WithComputed marks the field computed.
func (f FieldInfo) WithComputed(v bool) FieldInfo { f.Computed = v; return f }

// WithExclude marks the field excluded from dumps.
func (f FieldInfo) WithExclude(v bool) FieldInfo { f.Exclude = v; return f }

// WithConst marks the field immutable after creation.
func (f FieldInfo) WithConst(v bool) FieldInfo { f.Const = v; return f }

// WithHasDefault marks the field as having a default value.
func (f FieldInfo) WithHasDefault(v bool) FieldInfo { f.HasDefault = v; return f }

// WithDefaultJSON records the JSON form of the default and implies HasDefault.
func (f FieldInfo) WithDefaultJSON(doc string) FieldInfo {
	f.DefaultJSON = doc
	f.HasDefault = true
	return f
}

// WithTable qualifies the column to a specific table of a joined-inheritance
// hierarchy.
func (f FieldInfo) WithTable(table string) FieldInfo { f.Table = table; return f }

// WithTypeOverride replaces the default SQL type spelling.
func (f FieldInfo) WithTypeOverride(t string) FieldInfo { f.TypeOverride = t; return f }

// WithHybridSQL sets the hybrid property expression.
func (f FieldInfo) WithHybridSQL(sql string) FieldInfo { f.HybridSQL = sql; return f }

// OutputName resolves the name used on serialization:
// SerializationAlias, then Alias, then Name.
func (f FieldInfo) OutputName() string {
	if f.SerializationAlias != "" {
		return f.SerializationAlias
	}
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// MatchesInputName reports whether input names this field on
// deserialization: Name, Alias or ValidationAlias.
func (f FieldInfo) MatchesInputName(input string) bool {
	if input == f.Name {
		return true
	}
	if f.Alias != "" && input == f.Alias {
		return true
	}
	if f.ValidationAlias != "" && input == f.ValidationAlias {
		return true
	}
	return false
}

// SQLTypeText returns the DDL spelling of the field's type, honouring the
// per-field override.
func (f FieldInfo) SQLTypeText() string {
	if f.TypeOverride != "" {
		return f.TypeOverride
	}
	return f.Type.SQL()
}

// Storable reports whether the field maps to a database column.
func (f FieldInfo) Storable() bool {
	return !f.Computed && f.HybridSQL == ""
}

// InheritanceStrategy enumerates the table layouts of model hierarchies.
type InheritanceStrategy int

const (
	// InheritNone is a standalone model.
	InheritNone InheritanceStrategy = iota
	// InheritSingle keeps the whole hierarchy in one table with a
	// discriminator column.
	InheritSingle
	// InheritJoined gives each child its own table sharing the parent's
	// primary key.
	InheritJoined
	// InheritConcrete replicates all parent columns into independent
	// child tables.
	InheritConcrete
)

// InheritanceInfo describes a model's place in an inheritance hierarchy.
type InheritanceInfo struct {
	Strategy InheritanceStrategy
	// ParentTable is the base model's table, empty for the base itself.
	ParentTable string
	// DiscriminatorColumn is set on Single-strategy bases.
	DiscriminatorColumn string
	// DiscriminatorValue is set on Single-strategy children.
	DiscriminatorValue string
	// ParentPrimaryKey lists the shared PK columns for Joined children.
	ParentPrimaryKey []string
}

// NoInheritance is the InheritanceInfo of standalone models.
func NoInheritance() InheritanceInfo {
	return InheritanceInfo{Strategy: InheritNone}
}
