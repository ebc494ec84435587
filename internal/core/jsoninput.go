package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DecodeJSONObjects parses a JSON array of objects. Numbers keep their
// literal text so identifiers never pass through float64.
func DecodeJSONObjects(data []byte) ([]map[string]any, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: input is empty", ErrParse)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var objs []map[string]any
	if err := dec.Decode(&objs); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON array of objects: %v", ErrParse, err)
	}
	return objs, nil
}

// RawFromObject resolves an object's properties to canonical fields.
// Property names are normalized like headers; for each field the first
// alias (in table order) carrying a non-null value wins, so tipoIngreso
// takes precedence over sector.
func RawFromObject(obj map[string]any, aliases *AliasTable) RawRecord {
	names := make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)

	props := make(map[string]any, len(obj))
	for _, name := range names {
		v := obj[name]
		if v == nil {
			continue
		}
		n := NormalizeHeader(name)
		if _, seen := props[n]; !seen {
			props[n] = v
		}
	}

	var raw RawRecord
	for _, f := range AllFields() {
		for _, alias := range aliases.Aliases(f) {
			if v, ok := props[alias]; ok {
				raw[f] = jsonScalar(v)
				break
			}
		}
	}
	return raw
}

func jsonScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return jsonNumber(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

// jsonNumber renders exponent forms such as 2.5328387e7 as plain integers
// so identifiers keep their digits. Everything else keeps its literal text.
func jsonNumber(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, "eE") {
		return s
	}
	if d, err := decimal.NewFromString(s); err == nil && d.IsInteger() {
		return d.String()
	}
	return s
}

// ingestEnvelope is the wrapped JSON form of a load. persons and personas
// are accepted in place of records for older admin clients.
type ingestEnvelope struct {
	Mode     string          `json:"mode"`
	Records  json.RawMessage `json:"records"`
	Persons  json.RawMessage `json:"persons"`
	Personas json.RawMessage `json:"personas"`
}

// SplitJSONIngest accepts either a bare array of objects or an envelope
// {"mode": ..., "records": [...]}. It returns the envelope mode, empty for
// a bare array, and the array bytes for DecodeJSONObjects.
func SplitJSONIngest(data []byte) (string, []byte, error) {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return "", nil, ErrEmptyInput
	}
	if data[0] == '[' {
		return "", data, nil
	}

	var env ingestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	for _, raw := range []json.RawMessage{env.Records, env.Persons, env.Personas} {
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			return env.Mode, raw, nil
		}
	}
	return env.Mode, nil, ErrEmptyInput
}
