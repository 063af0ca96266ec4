package production

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func referenceTopology(ready bool) Topology {
	return Topology{
		Nodes: []Node{
			{Name: "circuit", Kind: KindCircuit, Interval: 100 * time.Millisecond, Active: true},
			{Name: "voltmeter", Kind: KindMeter, Unit: "V", Interval: 100 * time.Millisecond},
			{Name: "ammeter", Kind: KindMeter, Unit: "uA", Interval: 300 * time.Millisecond},
			{Name: "ohmmeter", Kind: KindDerived, Unit: "kOhm", Interval: time.Second, Active: ready},
		},
		Edges: []Edge{
			{From: "voltmeter", To: "ohmmeter", Label: "V"},
			{From: "circuit", To: "voltmeter", Label: "snapshot"},
			{From: "ammeter", To: "ohmmeter", Label: "I"},
			{From: "circuit", To: "ammeter", Label: "snapshot"},
		},
	}
}

func TestExportDOT(t *testing.T) {
	dot := ExportDOT(referenceTopology(false))

	assert.True(t, strings.HasPrefix(dot, "digraph Simulation {"))
	assert.True(t, strings.HasSuffix(dot, "}\n"))
	assert.Contains(t, dot, `"circuit" [label="circuit\nevery 100ms" shape=box3d style=filled fillcolor=orange];`)
	assert.Contains(t, dot, "subgraph cluster_instruments {")
	assert.Contains(t, dot, `    "ohmmeter" [label="ohmmeter\nkOhm every 1s" shape=ellipse];`)
	assert.Contains(t, dot, `"voltmeter" -> "ohmmeter" [label="V"];`)
	assert.NotContains(t, dot, "lightgreen")
}

func TestExportDOT_ReadyHighlight(t *testing.T) {
	dot := ExportDOT(referenceTopology(true))
	assert.Contains(t, dot, `"ohmmeter" [label="ohmmeter\nkOhm every 1s" shape=ellipse style=filled fillcolor=lightgreen];`)
}

func TestExportDOT_EdgeOrder(t *testing.T) {
	dot := ExportDOT(referenceTopology(false))

	first := strings.Index(dot, `"ammeter" -> "ohmmeter"`)
	second := strings.Index(dot, `"circuit" -> "ammeter"`)
	third := strings.Index(dot, `"circuit" -> "voltmeter"`)
	fourth := strings.Index(dot, `"voltmeter" -> "ohmmeter"`)
	assert.True(t, first < second && second < third && third < fourth, dot)
}

func TestExportDOT_Empty(t *testing.T) {
	dot := ExportDOT(Topology{})
	assert.NotContains(t, dot, "cluster_instruments")
	assert.NotContains(t, dot, "->")
}
