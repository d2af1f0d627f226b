package graph

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Cell is a single value read from a result row. The set of variants is
// closed: Scalar, Node, Relationship, Path, List and Map. Driver values are
// converted into cells once, in CellOf, so nothing past the driver boundary
// needs to know about dbtype.
type Cell interface {
	isCell()
}

// Scalar is any primitive the driver returns (nil, bool, int64, float64,
// string, []byte, time.Time) or the string form of a temporal/spatial value.
type Scalar struct {
	Value any
}

// Node is a graph node.
type Node struct {
	ElementID string
	Labels    []string
	Props     map[string]any
}

// Relationship is a typed, directed edge between two nodes.
type Relationship struct {
	ElementID string
	Type      string
	StartID   string
	EndID     string
	Props     map[string]any
}

// Path is an alternating sequence of nodes and relationships.
type Path struct {
	Nodes         []Node
	Relationships []Relationship
}

// List is an ordered collection of cells (e.g. the result of collect()).
type List []Cell

// Map is a string-keyed collection of cells (e.g. a map projection).
type Map map[string]Cell

func (Scalar) isCell()       {}
func (Node) isCell()         {}
func (Relationship) isCell() {}
func (Path) isCell()         {}
func (List) isCell()         {}
func (Map) isCell()          {}

// CellOf converts a driver value into a Cell.
func CellOf(v any) Cell {
	switch val := v.(type) {
	case Cell:
		return val
	case dbtype.Node:
		return nodeOf(val)
	case *dbtype.Node:
		if val == nil {
			return Scalar{}
		}
		return nodeOf(*val)
	case dbtype.Relationship:
		return relationshipOf(val)
	case *dbtype.Relationship:
		if val == nil {
			return Scalar{}
		}
		return relationshipOf(*val)
	case dbtype.Path:
		return pathOf(val)
	case []any:
		list := make(List, len(val))
		for i, item := range val {
			list[i] = CellOf(item)
		}
		return list
	case map[string]any:
		m := make(Map, len(val))
		for k, item := range val {
			m[k] = CellOf(item)
		}
		return m
	case time.Time:
		return Scalar{Value: val}
	case fmt.Stringer:
		// dbtype.Date, LocalTime, Time, LocalDateTime, Duration, Point2D, Point3D
		return Scalar{Value: val.String()}
	default:
		return Scalar{Value: val}
	}
}

func nodeOf(n dbtype.Node) Node {
	return Node{
		ElementID: n.ElementId,
		Labels:    n.Labels,
		Props:     n.Props,
	}
}

func relationshipOf(r dbtype.Relationship) Relationship {
	return Relationship{
		ElementID: r.ElementId,
		Type:      r.Type,
		StartID:   r.StartElementId,
		EndID:     r.EndElementId,
		Props:     r.Props,
	}
}

func pathOf(p dbtype.Path) Path {
	path := Path{
		Nodes:         make([]Node, len(p.Nodes)),
		Relationships: make([]Relationship, len(p.Relationships)),
	}
	for i, n := range p.Nodes {
		path.Nodes[i] = nodeOf(n)
	}
	for i, r := range p.Relationships {
		path.Relationships[i] = relationshipOf(r)
	}
	return path
}

// DisplayName returns the node's public identifier in a projection: the
// "name" property when it is a non-empty string, otherwise "Node_" followed
// by the last 8 characters of the element id.
func (n Node) DisplayName() string {
	if name, ok := n.Props["name"]; ok && name != nil {
		s, isString := name.(string)
		if !isString {
			s = fmt.Sprint(name)
		}
		if s != "" {
			return s
		}
	}
	id := n.ElementID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return "Node_" + id
}
