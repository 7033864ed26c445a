package taskgraph

import (
	"github.com/tyemirov/stagehand/pkg/task"
)

// PlanStage groups tasks that may execute in parallel.
type PlanStage struct {
	Index int
	Tasks []task.Task
}

// Plan is the ordered list of stages for one pass.
type Plan struct {
	Stages []PlanStage
}

// TaskCount returns the number of tasks across all stages.
func (plan Plan) TaskCount() int {
	count := 0
	for _, stage := range plan.Stages {
		count += len(stage.Tasks)
	}
	return count
}

type nodeStage struct {
	index int
	nodes []*graphNode
}

// planNodeStages layers the resolved graph with Kahn's algorithm. Nodes inside a
// stage keep the dependency-first discovery order of the resolver.
func planNodeStages(graph *resolvedGraph) ([]nodeStage, error) {
	if graph == nil || len(graph.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(graph.nodes))
	for _, node := range graph.nodes {
		inDegree[node.key] = len(node.dependencies)
	}

	ready := make([]*graphNode, 0)
	for _, node := range graph.nodes {
		if inDegree[node.key] == 0 {
			ready = append(ready, node)
		}
	}

	stages := make([]nodeStage, 0)
	processed := 0

	for len(ready) > 0 {
		stageNodes := ready
		ready = nil

		stages = append(stages, nodeStage{index: len(stages), nodes: stageNodes})
		processed += len(stageNodes)

		nextReadySet := make(map[string]struct{})
		for _, node := range stageNodes {
			for _, dependent := range node.dependents {
				inDegree[dependent.key]--
				if inDegree[dependent.key] == 0 {
					nextReadySet[dependent.key] = struct{}{}
				}
			}
		}

		for _, node := range graph.nodes {
			if _, available := nextReadySet[node.key]; available {
				ready = append(ready, node)
			}
		}
	}

	if processed != len(graph.nodes) {
		return nil, ErrCycleDetected
	}

	return stages, nil
}

func publicPlan(stages []nodeStage) Plan {
	plan := Plan{Stages: make([]PlanStage, 0, len(stages))}
	for _, stage := range stages {
		tasks := make([]task.Task, 0, len(stage.nodes))
		for _, node := range stage.nodes {
			tasks = append(tasks, node.task)
		}
		plan.Stages = append(plan.Stages, PlanStage{Index: stage.index, Tasks: tasks})
	}
	return plan
}
