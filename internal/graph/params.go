package graph

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rohankatakam/scholargraph/internal/errors"
)

const paramsObjectMessage = "parameters must be a JSON object"

// DecodeParams parses a JSON object of statement parameters. Integral numbers
// become int64 and every other number float64, so `LIMIT $n` and stored
// integer properties reach the server as integers. Empty input and null
// decode to an empty map.
func DecodeParams(data []byte) (map[string]any, error) {
	params := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return params, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.SeverityHigh, paramsObjectMessage)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.ValidationError(paramsObjectMessage + ": unexpected data after the object")
	}

	switch v := raw.(type) {
	case nil:
		return params, nil
	case map[string]any:
		for key, val := range v {
			native, err := nativeNumbers(val)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeValidation, errors.SeverityHigh,
					"parameter "+key+" is out of range")
			}
			params[key] = native
		}
		return params, nil
	default:
		return nil, errors.ValidationErrorf("%s, got %s", paramsObjectMessage, jsonKind(raw))
	}
}

// nativeNumbers replaces every json.Number in a decoded value
func nativeNumbers(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, nil
		}
		return val.Float64()
	case []any:
		for i, item := range val {
			native, err := nativeNumbers(item)
			if err != nil {
				return nil, err
			}
			val[i] = native
		}
		return val, nil
	case map[string]any:
		for key, item := range val {
			native, err := nativeNumbers(item)
			if err != nil {
				return nil, err
			}
			val[key] = native
		}
		return val, nil
	default:
		return v, nil
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return "unknown"
	}
}
