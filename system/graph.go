package system

import (
	"fmt"
	"strings"
)

// Edge records that Downstream reads Upstream's notification log — the
// "B follows A" relationship from one "A | B" pipeline expression.
type Edge struct {
	Upstream   string
	Downstream string
}

// Graph is the set of distinct process classes referenced by a system's
// pipeline expressions, plus the follows-edges between them. Per spec.md
// §4.8, a class may appear more than once across expressions (there is
// still exactly one instance per class), self-follow (A | A) is
// permitted, and the graph may contain cycles — each hop is a read/write
// across a durable notification log, not an object reference, so a cycle
// never deadlocks the way an in-memory call graph would.
type Graph struct {
	Classes []string
	Edges   []Edge
}

// ParsePipelineExpr parses one "A | B | C" expression into the ordered
// list of class names it names (at least one).
func ParsePipelineExpr(expr string) ([]string, error) {
	parts := strings.Split(expr, "|")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" {
			return nil, fmt.Errorf("system: empty class name in pipeline expression %q", expr)
		}
		names = append(names, name)
	}
	return names, nil
}

// BuildGraph parses every expression and merges them into one Graph. Class
// order in Graph.Classes is first-seen order across all expressions, for
// deterministic iteration in SingleThreadedRunner.
func BuildGraph(exprs []string) (*Graph, error) {
	g := &Graph{}
	seen := map[string]bool{}

	addClass := func(name string) {
		if !seen[name] {
			seen[name] = true
			g.Classes = append(g.Classes, name)
		}
	}

	for _, expr := range exprs {
		names, err := ParsePipelineExpr(expr)
		if err != nil {
			return nil, err
		}
		for i, name := range names {
			addClass(name)
			if i > 0 {
				g.Edges = append(g.Edges, Edge{Upstream: names[i-1], Downstream: name})
			}
		}
	}
	return g, nil
}

// UpstreamsOf returns the distinct classes that class directly follows.
func (g *Graph) UpstreamsOf(class string) []string {
	var out []string
	seen := map[string]bool{}
	for _, e := range g.Edges {
		if e.Downstream == class && !seen[e.Upstream] {
			seen[e.Upstream] = true
			out = append(out, e.Upstream)
		}
	}
	return out
}

// DownstreamsOf returns the distinct classes that directly follow class.
func (g *Graph) DownstreamsOf(class string) []string {
	var out []string
	seen := map[string]bool{}
	for _, e := range g.Edges {
		if e.Upstream == class && !seen[e.Downstream] {
			seen[e.Downstream] = true
			out = append(out, e.Downstream)
		}
	}
	return out
}
