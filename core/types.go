package core

import "fmt"

// SqlTypeKind enumerates the dialect-neutral SQL type tags.
type SqlTypeKind int

const (
	// TypeBool is BOOLEAN.
	TypeBool SqlTypeKind = iota
	// TypeSmallInt is SMALLINT.
	TypeSmallInt
	// TypeInt is INTEGER.
	TypeInt
	// TypeBigInt is BIGINT.
	TypeBigInt
	// TypeReal is REAL.
	TypeReal
	// TypeDouble is DOUBLE PRECISION.
	TypeDouble
	// TypeDecimal is DECIMAL(p,s).
	TypeDecimal
	// TypeNumeric is NUMERIC(p,s).
	TypeNumeric
	// TypeText is TEXT.
	TypeText
	// TypeVarchar is VARCHAR(n).
	TypeVarchar
	// TypeChar is CHAR(n).
	TypeChar
	// TypeBlob is BLOB / BYTEA.
	TypeBlob
	// TypeDate is DATE.
	TypeDate
	// TypeTime is TIME.
	TypeTime
	// TypeTimestamp is TIMESTAMP.
	TypeTimestamp
	// TypeTimestampTz is TIMESTAMP WITH TIME ZONE.
	TypeTimestampTz
	// TypeInterval is INTERVAL.
	TypeInterval
	// TypeUUID is UUID.
	TypeUUID
	// TypeJSON is JSON.
	TypeJSON
	// TypeJSONB is JSONB.
	TypeJSONB
	// TypeArray is ARRAY of an inner type.
	TypeArray
	// TypeEnum is a named enum type.
	TypeEnum
)

// SqlType is a dialect-neutral SQL type tag. Each variant knows its default
// SQL name; per-field overrides are carried on FieldInfo.
type SqlType struct {
	Kind SqlTypeKind
	// Precision and Scale apply to Decimal/Numeric.
	Precision int
	Scale     int
	// Size applies to Varchar/Char.
	Size int
	// Inner applies to Array.
	Inner *SqlType
	// Name applies to Enum.
	Name string
}

// Bool and friends are the zero-argument type constructors.
var (
	Boolean     = SqlType{Kind: TypeBool}
	SmallIntTy  = SqlType{Kind: TypeSmallInt}
	Integer     = SqlType{Kind: TypeInt}
	BigIntTy    = SqlType{Kind: TypeBigInt}
	Real        = SqlType{Kind: TypeReal}
	DoubleTy    = SqlType{Kind: TypeDouble}
	TextTy      = SqlType{Kind: TypeText}
	BlobTy      = SqlType{Kind: TypeBlob}
	DateTy      = SqlType{Kind: TypeDate}
	TimeTy      = SqlType{Kind: TypeTime}
	TimestampTy = SqlType{Kind: TypeTimestamp}
	TimestampTz = SqlType{Kind: TypeTimestampTz}
	Interval    = SqlType{Kind: TypeInterval}
	UUIDTy      = SqlType{Kind: TypeUUID}
	JSONTy      = SqlType{Kind: TypeJSON}
	JSONBTy     = SqlType{Kind: TypeJSONB}
)

// Decimal builds a DECIMAL(p,s) type.
func Decimal(precision, scale int) SqlType {
	return SqlType{Kind: TypeDecimal, Precision: precision, Scale: scale}
}

// Numeric builds a NUMERIC(p,s) type.
func Numeric(precision, scale int) SqlType {
	return SqlType{Kind: TypeNumeric, Precision: precision, Scale: scale}
}

// Varchar builds a VARCHAR(n) type.
func Varchar(size int) SqlType {
	return SqlType{Kind: TypeVarchar, Size: size}
}

// Char builds a CHAR(n) type.
func Char(size int) SqlType {
	return SqlType{Kind: TypeChar, Size: size}
}

// Array builds an array type over inner.
func Array(inner SqlType) SqlType {
	return SqlType{Kind: TypeArray, Inner: &inner}
}

// Enum builds a named enum type.
func Enum(name string) SqlType {
	return SqlType{Kind: TypeEnum, Name: name}
}

// SQL returns the default dialect-neutral SQL spelling of the type.
func (t SqlType) SQL() string {
	switch t.Kind {
	case TypeBool:
		return "BOOLEAN"
	case TypeSmallInt:
		return "SMALLINT"
	case TypeInt:
		return "INTEGER"
	case TypeBigInt:
		return "BIGINT"
	case TypeReal:
		return "REAL"
	case TypeDouble:
		return "DOUBLE PRECISION"
	case TypeDecimal:
		return fmt.Sprintf("DECIMAL(%d, %d)", t.Precision, t.Scale)
	case TypeNumeric:
		return fmt.Sprintf("NUMERIC(%d, %d)", t.Precision, t.Scale)
	case TypeText:
		return "TEXT"
	case TypeVarchar:
		return fmt.Sprintf("VARCHAR(%d)", t.Size)
	case TypeChar:
		return fmt.Sprintf("CHAR(%d)", t.Size)
	case TypeBlob:
		return "BLOB"
	case TypeDate:
		return "DATE"
	case TypeTime:
		return "TIME"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeTimestampTz:
		return "TIMESTAMP WITH TIME ZONE"
	case TypeInterval:
		return "INTERVAL"
	case TypeUUID:
		return "UUID"
	case TypeJSON:
		return "JSON"
	case TypeJSONB:
		return "JSONB"
	case TypeArray:
		if t.Inner != nil {
			return t.Inner.SQL() + "[]"
		}
		return "TEXT[]"
	case TypeEnum:
		return t.Name
	default:
		return "TEXT"
	}
}

// ValueKind returns the Value kind values of this type decode into.
func (t SqlType) ValueKind() ValueKind {
	switch t.Kind {
	case TypeBool:
		return KindBool
	case TypeSmallInt:
		return KindSmallInt
	case TypeInt:
		return KindInt
	case TypeBigInt:
		return KindBigInt
	case TypeReal:
		return KindFloat
	case TypeDouble, TypeDecimal, TypeNumeric:
		return KindDouble
	case TypeText, TypeVarchar, TypeChar, TypeEnum, TypeInterval:
		return KindText
	case TypeBlob:
		return KindBlob
	case TypeDate:
		return KindDate
	case TypeTime:
		return KindTime
	case TypeTimestamp, TypeTimestampTz:
		return KindTimestamp
	case TypeUUID:
		return KindUUID
	case TypeJSON, TypeJSONB:
		return KindJSON
	default:
		return KindText
	}
}
