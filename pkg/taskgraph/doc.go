// Package taskgraph schedules task.Task values. Process resolves the dependency
// graph reachable from the supplied roots, freezes every task's dependency list,
// partitions the graph into stages, and runs each stage concurrently. Every task
// runs at most once per pass and receives exactly the results of its direct
// dependencies. Failures skip the failed task's dependents while independent
// branches keep running; the returned Outcome records every task's state.
package taskgraph
