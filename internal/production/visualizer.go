package production

import (
	"bytes"
	"fmt"
	"sort"
	"time"
)

// NodeKind classifies a component in the wiring view.
type NodeKind string

const (
	KindCircuit NodeKind = "circuit"
	KindMeter   NodeKind = "meter"
	KindDerived NodeKind = "derived"
)

// Node is one component of a simulation.
type Node struct {
	Name     string
	Kind     NodeKind
	Unit     string
	Interval time.Duration
	Active   bool // derived: ready; others: has produced output
}

// Edge is a data dependency between two components.
type Edge struct {
	From  string
	To    string
	Label string
}

// Topology is the wiring of a simulation: who reads from whom.
type Topology struct {
	Nodes []Node
	Edges []Edge
}

// ExportDOT generates Graphviz DOT source for the wiring. Instruments are
// grouped in one cluster; active nodes are filled.
func ExportDOT(t Topology) string {
	var buf bytes.Buffer
	buf.WriteString(`digraph Simulation {
  rankdir=LR;
  node [shape=box, fontsize=10, style=rounded];
  edge [fontsize=9];
`)

	var instruments []Node
	for _, n := range t.Nodes {
		if n.Kind == KindCircuit {
			renderNode(&buf, "  ", n)
			continue
		}
		instruments = append(instruments, n)
	}

	if len(instruments) > 0 {
		buf.WriteString("  subgraph cluster_instruments {\n")
		buf.WriteString(`    label="instruments";` + "\n")
		for _, n := range instruments {
			renderNode(&buf, "    ", n)
		}
		buf.WriteString("  }\n")
	}

	edges := append([]Edge(nil), t.Edges...)
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	for _, e := range edges {
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.From, e.To, e.Label)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func renderNode(buf *bytes.Buffer, indent string, n Node) {
	label := n.Name
	switch {
	case n.Interval > 0 && n.Unit != "":
		label = fmt.Sprintf("%s\\n%s every %v", n.Name, n.Unit, n.Interval)
	case n.Interval > 0:
		label = fmt.Sprintf("%s\\nevery %v", n.Name, n.Interval)
	}

	shape := ""
	switch n.Kind {
	case KindCircuit:
		shape = " shape=box3d"
	case KindDerived:
		shape = " shape=ellipse"
	}

	style := ""
	if n.Active {
		color := "lightgreen"
		if n.Kind == KindCircuit {
			color = "orange"
		}
		style = " style=filled fillcolor=" + color
	}
	fmt.Fprintf(buf, "%s%q [label=\"%s\"%s%s];\n", indent, n.Name, label, shape, style)
}
