package spec

import (
	"errors"
	"fmt"
	"io"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"

	"mercator-hq/readbreak/pkg/expr"
)

// DependencyGraph builds a directed graph with one vertex per step and an
// edge from a step that stores a variable to every later step whose
// templates read it. Edges carry the variable name as their label.
// Templates that fail to compile contribute no edges.
func DependencyGraph(s *Spec) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.Acyclic())

	producer := make(map[string]string)
	for _, st := range s.Pipeline {
		attrs := []func(*graph.VertexProperties){
			graph.VertexAttribute("shape", "box"),
			graph.VertexAttribute("label", fmt.Sprintf("%s\\n(%s)", st.ID, st.Op)),
		}
		if st.MustPass {
			attrs = append(attrs, graph.VertexAttribute("style", "bold"))
		}
		if err := g.AddVertex(st.ID, attrs...); err != nil {
			if errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, fmt.Errorf("duplicate step id %q", st.ID)
			}
			return nil, err
		}

		for _, src := range st.Fields {
			str, ok := src.(string)
			if !ok || !expr.IsTemplate(str) {
				continue
			}
			tmpl, err := expr.Compile(str)
			if err != nil {
				continue
			}
			for _, ref := range tmpl.Refs() {
				if ref.Namespace != "" {
					continue
				}
				from, ok := producer[ref.Name]
				if !ok || from == st.ID {
					continue
				}
				err := g.AddEdge(from, st.ID, graph.EdgeAttribute("label", ref.Name))
				if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
					return nil, err
				}
			}
		}

		for _, name := range st.StoredNames() {
			producer[name] = st.ID
		}
	}
	return g, nil
}

// Dependencies returns, for each step, the ids of the steps it reads
// variables from.
func Dependencies(s *Spec) (map[string][]string, error) {
	g, err := DependencyGraph(s)
	if err != nil {
		return nil, err
	}
	preds, err := g.PredecessorMap()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(preds))
	for _, st := range s.Pipeline {
		var ids []string
		for from := range preds[st.ID] {
			ids = append(ids, from)
		}
		out[st.ID] = orderByPipeline(s, ids)
	}
	return out, nil
}

func orderByPipeline(s *Spec, ids []string) []string {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, st := range s.Pipeline {
		if want[st.ID] {
			out = append(out, st.ID)
		}
	}
	return out
}

// WriteDOT renders the step dependency graph in Graphviz DOT format.
func WriteDOT(w io.Writer, s *Spec) error {
	g, err := DependencyGraph(s)
	if err != nil {
		return err
	}
	return draw.DOT(g, w, draw.GraphAttribute("rankdir", "TB"))
}
