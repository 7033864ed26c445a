// Package tasks provides the concrete task variants stagehand plans can declare:
// shell commands, builds bound to a source tree version, and Google Cloud
// Functions deployments.
package tasks
