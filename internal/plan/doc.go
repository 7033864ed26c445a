// Package plan loads task plans from YAML or HCL files and turns them into
// concrete tasks whose versions come from a version provider.
package plan
