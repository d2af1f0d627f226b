package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

const (
	projectionNodesQuery = "MATCH (n) RETURN n LIMIT $limit"
	projectionLinksQuery = `MATCH (n)-[r]-(m)
WHERE elementId(n) IN $node_ids AND elementId(m) IN $node_ids
RETURN n, r, m`

	defaultSymbolSize = 30
	scholarSymbolSize = 40
	scholarLabel      = "Scholar"
	unknownCategory   = "Unknown"
)

// NodeView is a node in ECharts force-graph form. Derived fields: id, name,
// category, symbolSize, labels, _internal_id. Node properties fill the
// remaining keys.
type NodeView map[string]any

// LinkView is a relationship in ECharts form. Derived fields: source,
// target, name, type, _relationship_id, _start_node_id, _end_node_id.
type LinkView map[string]any

// Category is an ECharts legend entry
type Category struct {
	Name string `json:"name"`
}

// ProjectedGraph is the visualization payload for GET /graph-data
type ProjectedGraph struct {
	Nodes      []NodeView `json:"nodes"`
	Links      []LinkView `json:"links"`
	Categories []Category `json:"categories"`
}

// EmptyGraph returns a graph with no nodes, links or categories
func EmptyGraph() ProjectedGraph {
	return ProjectedGraph{
		Nodes:      []NodeView{},
		Links:      []LinkView{},
		Categories: []Category{},
	}
}

// Projector turns a bounded sample of the graph into a ProjectedGraph
type Projector struct {
	runner Runner
	logger *slog.Logger
}

// NewProjector creates a projector on top of a runner
func NewProjector(runner Runner, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{
		runner: runner,
		logger: logger.With("component", "projector"),
	}
}

// ProjectGraph fetches up to nodeLimit nodes and the relationships among
// them. Any failure yields an empty graph. The result is built fresh on
// every call.
func (p *Projector) ProjectGraph(ctx context.Context, nodeLimit int) ProjectedGraph {
	if nodeLimit < 0 {
		nodeLimit = 0
	}

	graph, err := p.project(ctx, nodeLimit)
	if err != nil {
		p.logger.Error("graph projection failed", "limit", nodeLimit, "error", err)
		return EmptyGraph()
	}

	p.logger.Debug("graph projected",
		"limit", nodeLimit,
		"nodes", len(graph.Nodes),
		"links", len(graph.Links),
		"categories", len(graph.Categories))
	return graph
}

func (p *Projector) project(ctx context.Context, nodeLimit int) (ProjectedGraph, error) {
	graph := EmptyGraph()

	nodesRaw, err := p.runner.Run(ctx, Statement{
		Text:      projectionNodesQuery,
		Params:    map[string]any{"limit": int64(nodeLimit)},
		Mode:      AccessModeRead,
		Operation: OpGraphProjection,
	})
	if err != nil {
		return graph, fmt.Errorf("node query failed: %w", err)
	}

	// Display names are the public ids. Two nodes sharing a name both keep
	// their view, but the id map holds whichever was seen last.
	idToName := make(map[string]string, len(nodesRaw.Rows))
	nodeIDs := make([]string, 0, len(nodesRaw.Rows))
	categories := map[string]struct{}{}

	for _, row := range nodesRaw.Rows {
		if len(row) == 0 {
			continue
		}
		node, ok := row[0].(Node)
		if !ok {
			return graph, fmt.Errorf("node query returned %T, expected node", row[0])
		}

		view, err := nodeViewOf(node)
		if err != nil {
			return graph, err
		}

		idToName[node.ElementID] = node.DisplayName()
		nodeIDs = append(nodeIDs, node.ElementID)
		categories[view["category"].(string)] = struct{}{}
		graph.Nodes = append(graph.Nodes, view)
	}

	if len(nodeIDs) == 0 {
		return graph, nil
	}

	linksRaw, err := p.runner.Run(ctx, Statement{
		Text:      projectionLinksQuery,
		Params:    map[string]any{"node_ids": nodeIDs},
		Mode:      AccessModeRead,
		Operation: OpGraphProjection,
	})
	if err != nil {
		return graph, fmt.Errorf("relationship query failed: %w", err)
	}

	seen := map[string]struct{}{}
	for _, row := range linksRaw.Rows {
		if len(row) < 2 {
			return graph, fmt.Errorf("relationship query returned %d columns, expected 3", len(row))
		}
		rel, ok := row[1].(Relationship)
		if !ok {
			return graph, fmt.Errorf("relationship query returned %T, expected relationship", row[1])
		}
		if _, dup := seen[rel.ElementID]; dup {
			continue
		}
		seen[rel.ElementID] = struct{}{}

		link, err := linkViewOf(rel, idToName)
		if err != nil {
			return graph, err
		}
		graph.Links = append(graph.Links, link)
	}

	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		graph.Categories = append(graph.Categories, Category{Name: name})
	}

	return graph, nil
}

func nodeViewOf(node Node) (NodeView, error) {
	name := node.DisplayName()

	category := unknownCategory
	if len(node.Labels) > 0 {
		category = node.Labels[0]
	}
	symbolSize := defaultSymbolSize
	if category == scholarLabel {
		symbolSize = scholarSymbolSize
	}

	view := NodeView{
		"id":           name,
		"name":         name,
		"category":     category,
		"symbolSize":   symbolSize,
		"labels":       labelsOrEmpty(node.Labels),
		"_internal_id": node.ElementID,
	}
	if err := mergeProps(view, node.Props); err != nil {
		return nil, fmt.Errorf("node %s: %w", node.ElementID, err)
	}
	return view, nil
}

func linkViewOf(rel Relationship, idToName map[string]string) (LinkView, error) {
	source, ok := idToName[rel.StartID]
	if !ok {
		source = rel.StartID
	}
	target, ok := idToName[rel.EndID]
	if !ok {
		target = rel.EndID
	}

	view := LinkView{
		"source":           source,
		"target":           target,
		"name":             rel.Type,
		"type":             rel.Type,
		"_relationship_id": rel.ElementID,
		"_start_node_id":   rel.StartID,
		"_end_node_id":     rel.EndID,
	}
	if err := mergeProps(view, rel.Props); err != nil {
		return nil, fmt.Errorf("relationship %s: %w", rel.ElementID, err)
	}
	return view, nil
}

// mergeProps copies normalized properties into view, keeping derived fields
func mergeProps(view map[string]any, props map[string]any) error {
	for k, v := range props {
		if _, taken := view[k]; taken {
			continue
		}
		nv, err := Normalize(v)
		if err != nil {
			return err
		}
		view[k] = nv
	}
	return nil
}
