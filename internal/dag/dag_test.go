package dag

import (
	"reflect"
	"testing"
)

// joinGraph builds orders -> customers -> companies, orders -> line_items.
func joinGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for _, id := range []string{"orders", "customers", "companies", "line_items"} {
		g.AddNode(id, nil)
	}
	mustEdge(t, g, "orders", "customers", "customer")
	mustEdge(t, g, "customers", "companies", "company")
	mustEdge(t, g, "orders", "line_items", "items")
	return g
}

func mustEdge(t *testing.T, g *Graph, from, to, label string) {
	t.Helper()
	if err := g.AddEdge(from, to, label); err != nil {
		t.Fatalf("AddEdge(%s, %s): %v", from, to, err)
	}
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := joinGraph(t)

	if g.NodeCount() != 4 {
		t.Errorf("expected 4 nodes, got %d", g.NodeCount())
	}
	if g.EdgeCount() != 3 {
		t.Errorf("expected 3 edges, got %d", g.EdgeCount())
	}

	g.AddNode("orders", "updated")
	if g.NodeCount() != 4 {
		t.Errorf("re-adding a node changed the count to %d", g.NodeCount())
	}
	if got := g.GetAllNodes()[3]; got.ID != "orders" || got.Data != "updated" {
		t.Errorf("expected orders data to be updated, got %+v", got)
	}
}

func TestGraph_AddEdge_Errors(t *testing.T) {
	g := NewGraph()
	g.AddNode("orders", nil)

	if err := g.AddEdge("orders", "missing", "x"); err == nil {
		t.Error("expected error for nonexistent child node")
	}
	if err := g.AddEdge("missing", "orders", "x"); err == nil {
		t.Error("expected error for nonexistent parent node")
	}
	if err := g.AddEdge("orders", "orders", "parent"); err == nil {
		t.Error("expected error for self-loop")
	}
}

func TestGraph_MultipleLabels(t *testing.T) {
	g := NewGraph()
	g.AddNode("orders", nil)
	g.AddNode("customers", nil)
	mustEdge(t, g, "orders", "customers", "shipper")
	mustEdge(t, g, "orders", "customers", "buyer")
	mustEdge(t, g, "orders", "customers", "buyer")

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 labeled edges, got %d", g.EdgeCount())
	}
	want := []Edge{
		{From: "orders", To: "customers", Label: "buyer"},
		{From: "orders", To: "customers", Label: "shipper"},
	}
	if got := g.EdgesFrom("orders"); !reflect.DeepEqual(got, want) {
		t.Errorf("EdgesFrom = %v, want %v", got, want)
	}
	if got := g.GetParents("customers"); !reflect.DeepEqual(got, []string{"orders"}) {
		t.Errorf("GetParents = %v, want [orders]", got)
	}
}

func TestGraph_HasCycle(t *testing.T) {
	g := joinGraph(t)
	if cyclic, _ := g.HasCycle(); cyclic {
		t.Error("expected no cycle")
	}

	mustEdge(t, g, "line_items", "orders", "order")
	cyclic, path := g.HasCycle()
	if !cyclic {
		t.Fatal("expected cycle")
	}
	want := []string{"line_items", "orders", "line_items"}
	if !reflect.DeepEqual(path, want) {
		t.Errorf("cycle path = %v, want %v", path, want)
	}
}
