// Package core defines the dialect-neutral data model shared by the query
// builders, the schema engine, the session, and every database driver:
// Value, Row, SqlType, field and relationship metadata, the Model contract,
// and the error taxonomy.
package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValueKind tags the variant carried by a Value.
type ValueKind int

const (
	// KindNull is the SQL NULL value.
	KindNull ValueKind = iota
	// KindBool is a boolean.
	KindBool
	// KindSmallInt is a 16-bit integer.
	KindSmallInt
	// KindInt is a 32-bit integer.
	KindInt
	// KindBigInt is a 64-bit integer.
	KindBigInt
	// KindFloat is a 32-bit float (stored as float64).
	KindFloat
	// KindDouble is a 64-bit float.
	KindDouble
	// KindText is a UTF-8 string.
	KindText
	// KindBlob is a byte slice.
	KindBlob
	// KindDate is a calendar date.
	KindDate
	// KindTime is a time of day.
	KindTime
	// KindTimestamp is a date + time.
	KindTimestamp
	// KindUUID is a 128-bit UUID.
	KindUUID
	// KindJSON is a JSON document stored in textual form.
	KindJSON
)

// String returns the kind name.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindSmallInt:
		return "smallint"
	case KindInt:
		return "int"
	case KindBigInt:
		return "bigint"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindTimestamp:
		return "timestamp"
	case KindUUID:
		return "uuid"
	case KindJSON:
		return "json"
	default:
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
}

// Value is a dialect-neutral column value. Values crossing dialect
// boundaries are always converted through this type, never raw driver types.
type Value struct {
	Kind ValueKind

	boolVal  bool
	intVal   int64
	floatVal float64
	textVal  string
	blobVal  []byte
	timeVal  time.Time
	uuidVal  uuid.UUID
}

// Null returns the NULL value.
func Null() Value {
	return Value{Kind: KindNull}
}

// Bool wraps a boolean.
func Bool(v bool) Value {
	return Value{Kind: KindBool, boolVal: v}
}

// SmallInt wraps a 16-bit integer.
func SmallInt(v int16) Value {
	return Value{Kind: KindSmallInt, intVal: int64(v)}
}

// Int wraps a 32-bit integer.
func Int(v int32) Value {
	return Value{Kind: KindInt, intVal: int64(v)}
}

// BigInt wraps a 64-bit integer.
func BigInt(v int64) Value {
	return Value{Kind: KindBigInt, intVal: v}
}

// Float wraps a 32-bit float.
func Float(v float64) Value {
	return Value{Kind: KindFloat, floatVal: v}
}

// Double wraps a 64-bit float.
func Double(v float64) Value {
	return Value{Kind: KindDouble, floatVal: v}
}

// Text wraps a string.
func Text(v string) Value {
	return Value{Kind: KindText, textVal: v}
}

// Blob wraps a byte slice. The slice is not copied.
func Blob(v []byte) Value {
	return Value{Kind: KindBlob, blobVal: v}
}

// Date wraps a calendar date. The time-of-day part of t is ignored by
// drivers when encoding.
func Date(t time.Time) Value {
	return Value{Kind: KindDate, timeVal: t}
}

// TimeOfDay wraps a time of day.
func TimeOfDay(t time.Time) Value {
	return Value{Kind: KindTime, timeVal: t}
}

// Timestamp wraps a date + time.
func Timestamp(t time.Time) Value {
	return Value{Kind: KindTimestamp, timeVal: t}
}

// UUID wraps a uuid.
func UUID(u uuid.UUID) Value {
	return Value{Kind: KindUUID, uuidVal: u}
}

// JSON wraps a JSON document in its textual form.
func JSON(doc string) Value {
	return Value{Kind: KindJSON, textVal: doc}
}

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// AsBool converts to bool.
func (v Value) AsBool() (bool, error) {
	switch v.Kind {
	case KindBool:
		return v.boolVal, nil
	case KindSmallInt, KindInt, KindBigInt:
		return v.intVal != 0, nil
	default:
		return false, convErr(v.Kind, "bool")
	}
}

// AsInt64 converts to int64.
func (v Value) AsInt64() (int64, error) {
	switch v.Kind {
	case KindSmallInt, KindInt, KindBigInt:
		return v.intVal, nil
	case KindBool:
		if v.boolVal {
			return 1, nil
		}
		return 0, nil
	case KindText:
		n, err := strconv.ParseInt(v.textVal, 10, 64)
		if err != nil {
			return 0, convErr(v.Kind, "int64")
		}
		return n, nil
	default:
		return 0, convErr(v.Kind, "int64")
	}
}

// AsFloat64 converts to float64.
func (v Value) AsFloat64() (float64, error) {
	switch v.Kind {
	case KindFloat, KindDouble:
		return v.floatVal, nil
	case KindSmallInt, KindInt, KindBigInt:
		return float64(v.intVal), nil
	default:
		return 0, convErr(v.Kind, "float64")
	}
}

// AsString converts to string. Text and JSON return their payload verbatim;
// other kinds return their canonical textual form.
func (v Value) AsString() (string, error) {
	if v.Kind == KindNull {
		return "", convErr(v.Kind, "string")
	}
	return v.Text(), nil
}

// AsBytes converts to a byte slice.
func (v Value) AsBytes() ([]byte, error) {
	switch v.Kind {
	case KindBlob:
		return v.blobVal, nil
	case KindText, KindJSON:
		return []byte(v.textVal), nil
	default:
		return nil, convErr(v.Kind, "[]byte")
	}
}

// AsTime converts to time.Time.
func (v Value) AsTime() (time.Time, error) {
	switch v.Kind {
	case KindDate, KindTime, KindTimestamp:
		return v.timeVal, nil
	default:
		return time.Time{}, convErr(v.Kind, "time.Time")
	}
}

// AsUUID converts to a uuid.UUID, parsing textual values when needed.
func (v Value) AsUUID() (uuid.UUID, error) {
	switch v.Kind {
	case KindUUID:
		return v.uuidVal, nil
	case KindText:
		u, err := uuid.Parse(v.textVal)
		if err != nil {
			return uuid.Nil, convErr(v.Kind, "uuid")
		}
		return u, nil
	default:
		return uuid.Nil, convErr(v.Kind, "uuid")
	}
}

// Text returns the canonical textual form of the value, as accepted by the
// text format of the wire protocols. NULL renders as the empty string.
func (v Value) Text() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.boolVal {
			return "true"
		}
		return "false"
	case KindSmallInt, KindInt, KindBigInt:
		return strconv.FormatInt(v.intVal, 10)
	case KindFloat, KindDouble:
		return formatFloat(v.floatVal)
	case KindText, KindJSON:
		return v.textVal
	case KindBlob:
		return `\x` + strings.ToLower(fmt.Sprintf("%x", v.blobVal))
	case KindDate:
		return v.timeVal.Format("2006-01-02")
	case KindTime:
		return v.timeVal.Format("15:04:05.999999")
	case KindTimestamp:
		return v.timeVal.Format("2006-01-02 15:04:05.999999")
	case KindUUID:
		return v.uuidVal.String()
	default:
		return ""
	}
}

// String implements fmt.Stringer. NULL renders as "NULL".
func (v Value) String() string {
	if v.Kind == KindNull {
		return "NULL"
	}
	return v.Text()
}

// Equal reports structural equality of two values.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.boolVal == other.boolVal
	case KindSmallInt, KindInt, KindBigInt:
		return v.intVal == other.intVal
	case KindFloat, KindDouble:
		return v.floatVal == other.floatVal
	case KindText, KindJSON:
		return v.textVal == other.textVal
	case KindBlob:
		return string(v.blobVal) == string(other.blobVal)
	case KindDate, KindTime, KindTimestamp:
		return v.timeVal.Equal(other.timeVal)
	case KindUUID:
		return v.uuidVal == other.uuidVal
	default:
		return false
	}
}

// Driver returns the value in a form accepted by database/sql drivers.
func (v Value) Driver() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.boolVal
	case KindSmallInt, KindInt, KindBigInt:
		return v.intVal
	case KindFloat, KindDouble:
		return v.floatVal
	case KindText, KindJSON:
		return v.textVal
	case KindBlob:
		return v.blobVal
	case KindDate, KindTime, KindTimestamp:
		return v.timeVal
	case KindUUID:
		return v.uuidVal.String()
	default:
		return nil
	}
}

// FromAny converts a Go value produced by a database/sql driver back into a
// Value. Unknown types are rendered through fmt as Text.
func FromAny(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case int:
		return BigInt(int64(x))
	case int16:
		return SmallInt(x)
	case int32:
		return Int(x)
	case int64:
		return BigInt(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Double(x)
	case string:
		return Text(x)
	case []byte:
		return Blob(append([]byte(nil), x...))
	case time.Time:
		return Timestamp(x)
	case uuid.UUID:
		return UUID(x)
	default:
		return Text(fmt.Sprint(x))
	}
}

// DriverArgs converts a parameter list to database/sql argument form.
func DriverArgs(params []Value) []any {
	if len(params) == 0 {
		return nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		out[i] = p.Driver()
	}
	return out
}

// formatFloat renders floats the way the wire protocols emit them,
// including the special values nan, inf and -inf.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	switch s {
	case "NaN":
		return "nan"
	case "+Inf", "Inf":
		return "inf"
	case "-Inf":
		return "-inf"
	}
	return s
}

// ParseFloatText parses the dialect's textual float form, accepting the
// special spellings nan, inf and -inf in any case.
func ParseFloatText(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nan":
		return math.NaN(), nil
	case "inf", "+inf", "infinity", "+infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

func convErr(from ValueKind, to string) error {
	return &Error{
		Kind:    KindQueryDatabase,
		Message: fmt.Sprintf("cannot convert %s value to %s", from, to),
	}
}
