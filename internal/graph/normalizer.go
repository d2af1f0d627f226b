package graph

import (
	"github.com/rohankatakam/scholargraph/internal/errors"
)

// NormalizeCell converts a cell into plain JSON-serializable values.
//
// Nodes become {type:"node", id, labels, properties}; relationships become
// {type:"relationship", id, type_name, properties, start_node, end_node};
// lists and maps are normalized element-wise; scalars pass through. Paths
// have no agreed serialization shape and are rejected with an
// UnsupportedShape error.
func NormalizeCell(c Cell) (any, error) {
	switch cell := c.(type) {
	case Node:
		props, err := normalizeProps(cell.Props)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"type":       "node",
			"id":         cell.ElementID,
			"labels":     labelsOrEmpty(cell.Labels),
			"properties": props,
		}, nil

	case Relationship:
		props, err := normalizeProps(cell.Props)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"type":       "relationship",
			"id":         cell.ElementID,
			"type_name":  cell.Type,
			"properties": props,
			"start_node": cell.StartID,
			"end_node":   cell.EndID,
		}, nil

	case List:
		out := make([]any, len(cell))
		for i, item := range cell {
			v, err := NormalizeCell(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case Map:
		out := make(map[string]any, len(cell))
		for k, item := range cell {
			v, err := NormalizeCell(item)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case Path:
		return nil, errors.UnsupportedShapeErrorf("unsupported result shape: path with %d nodes", len(cell.Nodes))

	case Scalar:
		return cell.Value, nil

	case nil:
		return nil, nil

	default:
		return nil, errors.UnsupportedShapeErrorf("unsupported result shape: %T", c)
	}
}

// Normalize converts a raw driver value (or an already-normalized value).
// It is idempotent: Normalize(Normalize(v)) equals Normalize(v).
func Normalize(v any) (any, error) {
	return NormalizeCell(CellOf(v))
}

func normalizeProps(props map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(props))
	for k, v := range props {
		nv, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

func labelsOrEmpty(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}
