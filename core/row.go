package core

// ColumnInfo describes one result column. Drivers fill it from the wire
// metadata (RowDescription on Postgres, column definitions on MySQL).
type ColumnInfo struct {
	Name string
	// TypeOID is the backend type identifier (Postgres OID, 0 elsewhere).
	TypeOID uint32
	// Format is the wire format code: 0 text, 1 binary.
	Format int16
}

// Columns is the column metadata shared by all rows of one result set.
type Columns struct {
	infos []ColumnInfo
	index map[string]int
}

// NewColumns builds shared column metadata. The first column wins when two
// columns carry the same name.
func NewColumns(infos []ColumnInfo) *Columns {
	index := make(map[string]int, len(infos))
	for i, c := range infos {
		if _, dup := index[c.Name]; !dup {
			index[c.Name] = i
		}
	}
	return &Columns{infos: infos, index: index}
}

// Len returns the number of columns.
func (c *Columns) Len() int {
	return len(c.infos)
}

// Info returns the metadata of column i.
func (c *Columns) Info(i int) ColumnInfo {
	return c.infos[i]
}

// Index resolves a column name to its position, -1 when absent.
func (c *Columns) Index(name string) int {
	if i, ok := c.index[name]; ok {
		return i
	}
	return -1
}

// Names returns the column names in order.
func (c *Columns) Names() []string {
	out := make([]string, len(c.infos))
	for i, info := range c.infos {
		out[i] = info.Name
	}
	return out
}

// Row is an ordered sequence of values with shared column metadata.
// Rows are immutable after construction.
type Row struct {
	cols   *Columns
	values []Value
}

// NewRow builds a row over shared column metadata. The value slice must have
// exactly one entry per column.
func NewRow(cols *Columns, values []Value) Row {
	return Row{cols: cols, values: values}
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.values)
}

// Columns returns the shared column metadata.
func (r Row) Columns() *Columns {
	return r.cols
}

// Value returns the value at index i. Out-of-range indices return NULL.
func (r Row) Value(i int) Value {
	if i < 0 || i >= len(r.values) {
		return Null()
	}
	return r.values[i]
}

// Named returns the value of the named column.
func (r Row) Named(name string) (Value, bool) {
	if r.cols == nil {
		return Null(), false
	}
	i := r.cols.Index(name)
	if i < 0 {
		return Null(), false
	}
	return r.Value(i), true
}

// Int64 reads column i as int64.
func (r Row) Int64(i int) (int64, error) {
	return r.Value(i).AsInt64()
}

// String reads column i as string.
func (r Row) String(i int) (string, error) {
	return r.Value(i).AsString()
}

// Bool reads column i as bool.
func (r Row) Bool(i int) (bool, error) {
	return r.Value(i).AsBool()
}

// Float64 reads column i as float64.
func (r Row) Float64(i int) (float64, error) {
	return r.Value(i).AsFloat64()
}

// NamedInt64 reads the named column as int64.
func (r Row) NamedInt64(name string) (int64, error) {
	v, ok := r.Named(name)
	if !ok {
		return 0, Errorf(KindQueryDatabase, "no column named %q", name)
	}
	return v.AsInt64()
}

// NamedString reads the named column as string.
func (r Row) NamedString(name string) (string, error) {
	v, ok := r.Named(name)
	if !ok {
		return "", Errorf(KindQueryDatabase, "no column named %q", name)
	}
	return v.AsString()
}

// GetAs reads column i converted to T using the value conversion rules.
func GetAs[T any](r Row, i int) (T, error) {
	return convertValue[T](r.Value(i))
}

// GetNamed reads the named column converted to T.
func GetNamed[T any](r Row, name string) (T, error) {
	var zero T
	v, ok := r.Named(name)
	if !ok {
		return zero, Errorf(KindQueryDatabase, "no column named %q", name)
	}
	return convertValue[T](v)
}

func convertValue[T any](v Value) (T, error) {
	var zero T
	var out any
	var err error
	switch any(zero).(type) {
	case int64:
		out, err = v.AsInt64()
	case int32:
		var n int64
		n, err = v.AsInt64()
		out = int32(n)
	case int16:
		var n int64
		n, err = v.AsInt64()
		out = int16(n)
	case int:
		var n int64
		n, err = v.AsInt64()
		out = int(n)
	case string:
		out, err = v.AsString()
	case bool:
		out, err = v.AsBool()
	case float64:
		out, err = v.AsFloat64()
	case []byte:
		out, err = v.AsBytes()
	case Value:
		out = v
	default:
		return zero, Errorf(KindQueryDatabase, "unsupported conversion target %T", zero)
	}
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}
