// Package production provides the integrations around a simulation run:
// Prometheus metrics, report publishing, run export, the Graphviz wiring view
// and HTML charts of reading histories.
package production
