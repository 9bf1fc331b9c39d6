package postgres

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// Well-known type OIDs from pg_type.
const (
	oidBool        = 16
	oidBytea       = 17
	oidInt8        = 20
	oidInt2        = 21
	oidInt4        = 23
	oidText        = 25
	oidJSON        = 114
	oidFloat4      = 700
	oidFloat8      = 701
	oidVarchar     = 1043
	oidDate        = 1082
	oidTime        = 1083
	oidTimestamp   = 1114
	oidTimestampTz = 1184
	oidNumeric     = 1700
	oidUUID        = 2950
	oidJSONB       = 3802
)

const (
	timestampLayout   = "2006-01-02 15:04:05.999999"
	timestampTzLayout = "2006-01-02 15:04:05.999999-07"
	dateLayout        = "2006-01-02"
	timeLayout        = "15:04:05.999999"
)

// paramOIDs declares the parameter types for a Parse message from the
// values' kinds, so the backend never has to infer them from context.
// Null stays 0 (unspecified).
func paramOIDs(params []core.Value) []uint32 {
	if len(params) == 0 {
		return nil
	}
	oids := make([]uint32, len(params))
	for i, p := range params {
		oids[i] = oidOf(p.Kind)
	}
	return oids
}

func oidOf(k core.ValueKind) uint32 {
	switch k {
	case core.KindBool:
		return oidBool
	case core.KindSmallInt:
		return oidInt2
	case core.KindInt:
		return oidInt4
	case core.KindBigInt:
		return oidInt8
	case core.KindFloat:
		return oidFloat4
	case core.KindDouble:
		return oidFloat8
	case core.KindText:
		return oidText
	case core.KindBlob:
		return oidBytea
	case core.KindDate:
		return oidDate
	case core.KindTime:
		return oidTime
	case core.KindTimestamp:
		return oidTimestamp
	case core.KindUUID:
		return oidUUID
	case core.KindJSON:
		return oidJSON
	default:
		return 0
	}
}

// encodeParam renders a Value in the text wire format. Nil means SQL NULL.
func encodeParam(v core.Value) []byte {
	if v.IsNull() {
		return nil
	}
	switch v.Kind {
	case core.KindBool:
		b, _ := v.AsBool()
		if b {
			return []byte("t")
		}
		return []byte("f")
	case core.KindBlob:
		raw, _ := v.AsBytes()
		out := make([]byte, 2+hex.EncodedLen(len(raw)))
		out[0], out[1] = '\\', 'x'
		hex.Encode(out[2:], raw)
		return out
	default:
		return []byte(v.Text())
	}
}

// decodeColumn converts a text-format wire value into a Value using the
// column's type OID. Unknown OIDs decode as text.
func decodeColumn(oid uint32, raw []byte) (core.Value, error) {
	if raw == nil {
		return core.Null(), nil
	}
	s := string(raw)
	switch oid {
	case oidBool:
		return core.Bool(s == "t" || s == "true"), nil
	case oidInt2:
		n, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			return core.Null(), decodeErr("int2", s, err)
		}
		return core.SmallInt(int16(n)), nil
	case oidInt4:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return core.Null(), decodeErr("int4", s, err)
		}
		return core.Int(int32(n)), nil
	case oidInt8:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return core.Null(), decodeErr("int8", s, err)
		}
		return core.BigInt(n), nil
	case oidFloat4, oidFloat8, oidNumeric:
		f, err := core.ParseFloatText(s)
		if err != nil {
			return core.Null(), decodeErr("float", s, err)
		}
		return core.Double(f), nil
	case oidBytea:
		if !strings.HasPrefix(s, `\x`) {
			return core.Null(), decodeErr("bytea", s, nil)
		}
		raw, err := hex.DecodeString(s[2:])
		if err != nil {
			return core.Null(), decodeErr("bytea", s, err)
		}
		return core.Blob(raw), nil
	case oidDate:
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return core.Null(), decodeErr("date", s, err)
		}
		return core.Date(t), nil
	case oidTime:
		t, err := time.Parse(timeLayout, s)
		if err != nil {
			return core.Null(), decodeErr("time", s, err)
		}
		return core.TimeOfDay(t), nil
	case oidTimestamp:
		t, err := time.Parse(timestampLayout, s)
		if err != nil {
			return core.Null(), decodeErr("timestamp", s, err)
		}
		return core.Timestamp(t), nil
	case oidTimestampTz:
		t, err := time.Parse(timestampTzLayout, s)
		if err != nil {
			return core.Null(), decodeErr("timestamptz", s, err)
		}
		return core.Timestamp(t), nil
	case oidUUID:
		u, err := uuid.Parse(s)
		if err != nil {
			return core.Null(), decodeErr("uuid", s, err)
		}
		return core.UUID(u), nil
	case oidJSON, oidJSONB:
		return core.JSON(s), nil
	default:
		return core.Text(s), nil
	}
}

func decodeErr(typ, raw string, cause error) error {
	e := core.Errorf(core.KindProtocol, "cannot decode %q as %s", raw, typ)
	e.Cause = cause
	return e
}
