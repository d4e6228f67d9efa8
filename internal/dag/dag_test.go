package dag

import (
	"errors"
	"reflect"
	"testing"

	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := NewGraph()

	g.AddNode("a", "node A")
	g.AddNode("b", "node B")
	g.AddNode("c", "node C")

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}

	if err := g.AddEdge("a", "b"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}
	if err := g.AddEdge("b", "c"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)

	if err := g.AddEdge("a", "nonexistent"); err == nil {
		t.Error("expected error for nonexistent child node")
	}
	if err := g.AddEdge("nonexistent", "a"); err == nil {
		t.Error("expected error for nonexistent parent node")
	}
}

func TestGraph_GetParentsAndChildren(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "c")

	if parents := g.GetParents("c"); len(parents) != 2 {
		t.Errorf("expected c to have 2 parents, got %d", len(parents))
	}
	if children := g.GetChildren("a"); len(children) != 2 {
		t.Errorf("expected a to have 2 children, got %d", len(children))
	}
}

func TestGraph_HasCycle_WithCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)
	g.AddNode("c", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("c", "a")

	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected cycle to be detected")
	}
	if len(path) == 0 {
		t.Error("expected cycle path to be non-empty")
	}
}

func TestGraph_TopologicalSort_FIFOTieBreak(t *testing.T) {
	// Declaration order decides between nodes that are ready together.
	g := NewGraph()
	for _, id := range []string{"t2", "t1", "q", "d"} {
		g.AddNode(id, nil)
	}
	_ = g.AddEdge("t1", "q")
	_ = g.AddEdge("t2", "q")
	_ = g.AddEdge("q", "d")

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}

	want := []string{"t2", "t1", "q", "d"}
	if !reflect.DeepEqual(sorted, want) {
		t.Errorf("expected %v, got %v", want, sorted)
	}
}

func TestGraph_TopologicalSort_ChildrenInEdgeOrder(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"root", "x", "y", "z"} {
		g.AddNode(id, nil)
	}
	_ = g.AddEdge("root", "z")
	_ = g.AddEdge("root", "x")
	_ = g.AddEdge("root", "y")

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}

	want := []string{"root", "z", "x", "y"}
	if !reflect.DeepEqual(sorted, want) {
		t.Errorf("expected %v, got %v", want, sorted)
	}
}

func TestGraph_TopologicalSort_Diamond(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.AddNode(id, nil)
	}
	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "c")
	_ = g.AddEdge("b", "d")
	_ = g.AddEdge("c", "d")

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}

	positions := make(map[string]int)
	for i, id := range sorted {
		positions[id] = i
	}
	if positions["a"] != 0 {
		t.Error("a should be first")
	}
	if positions["d"] != 3 {
		t.Error("d should be last")
	}
}

func TestGraph_TopologicalSort_LinearExtension(t *testing.T) {
	g := NewGraph()
	ids := []string{"n1", "n2", "n3", "n4", "n5", "n6"}
	for _, id := range ids {
		g.AddNode(id, nil)
	}
	edges := [][2]string{{"n6", "n1"}, {"n1", "n3"}, {"n2", "n3"}, {"n3", "n5"}, {"n4", "n5"}, {"n6", "n4"}}
	for _, e := range edges {
		_ = g.AddEdge(e[0], e[1])
	}

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}
	if len(sorted) != len(ids) {
		t.Fatalf("expected %d nodes, got %d", len(ids), len(sorted))
	}

	positions := make(map[string]int)
	for i, id := range sorted {
		positions[id] = i
	}
	for _, e := range edges {
		if positions[e[0]] >= positions[e[1]] {
			t.Errorf("%s should come before %s in %v", e[0], e[1], sorted)
		}
	}
}

func TestGraph_TopologicalSort_WithCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("root", nil)
	g.AddNode("a", nil)
	g.AddNode("b", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("b", "a")

	sorted, err := g.TopologicalSort()
	if err == nil {
		t.Fatal("expected error for cyclic graph")
	}
	if sorted != nil {
		t.Errorf("expected no partial order, got %v", sorted)
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if cycleErr.Ordered != 1 || cycleErr.Total != 3 {
		t.Errorf("expected 1 of 3 ordered, got %d of %d", cycleErr.Ordered, cycleErr.Total)
	}
}

func TestGraph_TopologicalSort_SelfLoop(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)

	if err := g.AddEdge("a", "a"); err != nil {
		t.Fatalf("self loop should be recorded, got %v", err)
	}

	_, err := g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %v", err)
	}
	if !reflect.DeepEqual(cycleErr.Cycle, []string{"a", "a"}) {
		t.Errorf("expected cycle [a a], got %v", cycleErr.Cycle)
	}
}

func TestGraph_GetExecutionLevels(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"file1", "table1", "query1", "query2", "display"} {
		g.AddNode(id, nil)
	}
	_ = g.AddEdge("file1", "query1")
	_ = g.AddEdge("table1", "query2")
	_ = g.AddEdge("query1", "display")
	_ = g.AddEdge("query2", "display")

	levels, err := g.GetExecutionLevels()
	if err != nil {
		t.Fatalf("failed to get levels: %v", err)
	}

	want := [][]string{{"file1", "table1"}, {"query1", "query2"}, {"display"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("expected %v, got %v", want, levels)
	}
}

func TestGraph_RootsAndLeaves(t *testing.T) {
	g := NewGraph()
	g.AddNode("b", nil)
	g.AddNode("a", nil)
	g.AddNode("c", nil)
	_ = g.AddEdge("b", "c")
	_ = g.AddEdge("a", "c")

	if roots := g.GetRoots(); !reflect.DeepEqual(roots, []string{"b", "a"}) {
		t.Errorf("expected roots [b a], got %v", roots)
	}
	if leaves := g.GetLeaves(); !reflect.DeepEqual(leaves, []string{"c"}) {
		t.Errorf("expected leaves [c], got %v", leaves)
	}
}

func TestGraph_DuplicateEdges(t *testing.T) {
	g := NewGraph()
	g.AddNode("a", nil)
	g.AddNode("b", nil)

	_ = g.AddEdge("a", "b")
	_ = g.AddEdge("a", "b")

	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge (no duplicates), got %d", g.EdgeCount())
	}
	if _, err := g.TopologicalSort(); err != nil {
		t.Errorf("duplicate edges must not block scheduling: %v", err)
	}
}

func TestFromCore(t *testing.T) {
	pg := core.NewGraph(
		[]core.Node{{ID: "t", Type: core.NodeTypeTable}, {ID: "q", Type: core.NodeTypeQuery}},
		[]core.Connection{{From: "t", To: "q", ToSocket: "input"}},
	)

	g, err := FromCore(pg)
	if err != nil {
		t.Fatalf("FromCore failed: %v", err)
	}
	node, ok := g.GetNode("q")
	if !ok {
		t.Fatal("expected node q")
	}
	if n, _ := node.Data.(core.Node); n.Type != core.NodeTypeQuery {
		t.Errorf("expected node data to carry the pipeline node, got %#v", node.Data)
	}

	pg.Connections = append(pg.Connections, core.Connection{From: "missing", To: "q"})
	if _, err := FromCore(pg); err == nil {
		t.Error("expected error for connection to unknown node")
	}
}
