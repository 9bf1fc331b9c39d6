package core

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ValidateOptions controls ModelValidate behaviour.
type ValidateOptions struct {
	// AllowExtra accepts unknown input keys instead of rejecting them.
	AllowExtra bool
}

// DumpOptions controls Dump behaviour.
type DumpOptions struct {
	// ExcludeUnset omits fields that were not explicitly provided.
	ExcludeUnset bool
	// ExcludeNone omits NULL-valued fields.
	ExcludeNone bool
	// ExcludeDefaults omits fields whose value equals their declared
	// JSON default.
	ExcludeDefaults bool
	// ByAlias is implied; output always uses OutputName resolution.
	// ExcludeComputed omits computed fields from the dump.
	ExcludeComputed bool
}

// ValidatedModel is the result of validating a JSON object against a field
// table: the decoded values in field order plus the fields-set bitset.
type ValidatedModel struct {
	Fields []FieldInfo
	Values []Value
	Set    FieldsSet
}

// ModelValidate decodes a JSON object against the field table. Unknown keys
// are rejected unless opts.AllowExtra; missing fields fall back to their
// defaults when HasDefault, NULL when Nullable, and are reported as
// validation errors otherwise. The returned FieldsSet marks exactly the
// explicitly provided fields.
func ModelValidate(modelName string, fields []FieldInfo, data []byte, opts ValidateOptions) (*ValidatedModel, error) {
	var input map[string]json.RawMessage
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, (&ValidationError{
			Model:  modelName,
			Fields: []FieldValidationError{{Field: "", Message: "input is not a JSON object"}},
		}).AsError()
	}

	out := &ValidatedModel{
		Fields: fields,
		Values: make([]Value, len(fields)),
		Set:    EmptyFieldsSet(len(fields)),
	}
	var errs []FieldValidationError
	used := make(map[string]bool, len(input))

	for i, f := range fields {
		var raw json.RawMessage
		found := false
		for key, rv := range input {
			if f.MatchesInputName(key) {
				raw, found = rv, true
				used[key] = true
				break
			}
		}
		if !found {
			switch {
			case f.HasDefault && f.DefaultJSON != "":
				v, err := decodeJSONValue(f, json.RawMessage(f.DefaultJSON))
				if err != nil {
					errs = append(errs, FieldValidationError{Field: f.Name, Message: "invalid default: " + err.Error()})
					continue
				}
				out.Values[i] = v
			case f.HasDefault || f.Computed:
				out.Values[i] = Null()
			case f.Nullable || f.AutoIncrement:
				out.Values[i] = Null()
			default:
				errs = append(errs, FieldValidationError{Field: f.Name, Message: "field required"})
			}
			continue
		}
		v, err := decodeJSONValue(f, raw)
		if err != nil {
			errs = append(errs, FieldValidationError{Field: f.Name, Message: err.Error()})
			continue
		}
		out.Values[i] = v
		out.Set.Set(i)
	}

	if !opts.AllowExtra {
		for key := range input {
			if !used[key] {
				errs = append(errs, FieldValidationError{Field: key, Message: "unknown field"})
			}
		}
	}
	if len(errs) > 0 {
		return nil, (&ValidationError{Model: modelName, Fields: errs}).AsError()
	}
	return out, nil
}

// MarkSet marks a field as explicitly provided after the fact, mirroring a
// direct assignment on the instance.
func (m *ValidatedModel) MarkSet(name string) {
	for i, f := range m.Fields {
		if f.Name == name {
			m.Set.Set(i)
			return
		}
	}
}

// SetValue assigns a field value and marks it set.
func (m *ValidatedModel) SetValue(name string, v Value) {
	for i, f := range m.Fields {
		if f.Name == name {
			m.Values[i] = v
			m.Set.Set(i)
			return
		}
	}
}

// Value returns the current value of a field by name.
func (m *ValidatedModel) Value(name string) (Value, bool) {
	for i, f := range m.Fields {
		if f.Name == name {
			return m.Values[i], true
		}
	}
	return Null(), false
}

// Dump serialises the instance to a JSON-compatible map. Excluded fields
// never appear; ExcludeUnset consults the FieldsSet; output keys follow
// OutputName resolution.
func (m *ValidatedModel) Dump(opts DumpOptions) map[string]any {
	out := make(map[string]any, len(m.Fields))
	for i, f := range m.Fields {
		if f.Exclude {
			continue
		}
		if opts.ExcludeComputed && f.Computed {
			continue
		}
		if opts.ExcludeUnset && !m.Set.IsSet(i) {
			continue
		}
		v := m.Values[i]
		if opts.ExcludeNone && v.IsNull() {
			continue
		}
		if opts.ExcludeDefaults && f.DefaultJSON != "" {
			if encoded, err := json.Marshal(jsonValue(v)); err == nil && string(encoded) == f.DefaultJSON {
				continue
			}
		}
		out[f.OutputName()] = jsonValue(v)
	}
	return out
}

// decodeJSONValue converts a raw JSON scalar into the field's Value kind.
func decodeJSONValue(f FieldInfo, raw json.RawMessage) (Value, error) {
	if string(raw) == "null" {
		if !f.Nullable && !f.PrimaryKey && !f.HasDefault {
			return Null(), fmt.Errorf("null is not allowed")
		}
		return Null(), nil
	}
	kind := f.Type.ValueKind()
	switch kind {
	case KindBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Null(), fmt.Errorf("expected boolean")
		}
		return Bool(b), nil
	case KindSmallInt, KindInt, KindBigInt:
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return Null(), fmt.Errorf("expected integer")
		}
		switch kind {
		case KindSmallInt:
			return SmallInt(int16(n)), nil
		case KindInt:
			return Int(int32(n)), nil
		default:
			return BigInt(n), nil
		}
	case KindFloat, KindDouble:
		var x float64
		if err := json.Unmarshal(raw, &x); err != nil {
			return Null(), fmt.Errorf("expected number")
		}
		if kind == KindFloat {
			return Float(x), nil
		}
		return Double(x), nil
	case KindText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Null(), fmt.Errorf("expected string")
		}
		return Text(s), nil
	case KindUUID:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Null(), fmt.Errorf("expected uuid string")
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return Null(), fmt.Errorf("invalid uuid")
		}
		return UUID(u), nil
	case KindJSON:
		return JSON(string(raw)), nil
	default:
		// Dates and timestamps arrive as strings; keep the textual form and
		// let the driver encode it.
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Null(), fmt.Errorf("expected string")
		}
		return Text(s), nil
	}
}

// jsonValue renders a Value as a JSON-compatible Go value.
func jsonValue(v Value) any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		b, _ := v.AsBool()
		return b
	case KindSmallInt, KindInt, KindBigInt:
		n, _ := v.AsInt64()
		return n
	case KindFloat, KindDouble:
		f, _ := v.AsFloat64()
		return f
	case KindJSON:
		var doc any
		if err := json.Unmarshal([]byte(v.Text()), &doc); err == nil {
			return doc
		}
		return v.Text()
	default:
		return v.Text()
	}
}
