package taskgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/tyemirov/stagehand/pkg/task"
)

type visitColor int

const (
	visitColorWhite visitColor = iota
	visitColorGray
	visitColorBlack
)

type graphNode struct {
	task         task.Task
	key          string
	dependencies []*graphNode
	dependents   []*graphNode
}

// resolvedGraph holds every task reachable from the roots in dependency-first order.
type resolvedGraph struct {
	nodes     []*graphNode
	nodeByKey map[string]*graphNode
}

type graphResolver struct {
	executionContext context.Context
	colors           map[string]visitColor
	path             []string
	graph            *resolvedGraph
}

// resolveGraph walks Dependencies from every root, calling it once per task.
func resolveGraph(executionContext context.Context, roots []task.Task) (*resolvedGraph, error) {
	resolver := &graphResolver{
		executionContext: executionContext,
		colors:           make(map[string]visitColor),
		graph: &resolvedGraph{
			nodeByKey: make(map[string]*graphNode),
		},
	}

	for rootIndex, root := range roots {
		if root == nil {
			return nil, fmt.Errorf(nilRootTaskTemplateConstant, ErrInvalidTask, rootIndex)
		}
		if _, visitError := resolver.visit(root); visitError != nil {
			return nil, visitError
		}
	}

	return resolver.graph, nil
}

func (resolver *graphResolver) visit(current task.Task) (*graphNode, error) {
	key := strings.TrimSpace(current.Key())
	if len(key) == 0 {
		return nil, fmt.Errorf(emptyKeyTemplateConstant, ErrInvalidTask, current.Type())
	}

	switch resolver.colors[key] {
	case visitColorBlack:
		return resolver.graph.nodeByKey[key], nil
	case visitColorGray:
		return nil, resolver.cycleFrom(key)
	}

	resolver.colors[key] = visitColorGray
	resolver.path = append(resolver.path, key)

	if freezer, freezable := current.(task.Freezer); freezable {
		freezer.Freeze()
	}

	dependencies, dependenciesError := current.Dependencies(resolver.executionContext)
	if dependenciesError != nil {
		return nil, fmt.Errorf(resolveDependenciesTemplateConstant, key, dependenciesError)
	}

	node := &graphNode{task: current, key: key}
	seenDependencies := make(map[string]struct{}, len(dependencies))
	for _, dependency := range dependencies {
		if dependency == nil {
			return nil, fmt.Errorf(nilDependencyTemplateConstant, ErrInvalidTask, key)
		}
		dependencyNode, visitError := resolver.visit(dependency)
		if visitError != nil {
			return nil, visitError
		}
		if _, duplicate := seenDependencies[dependencyNode.key]; duplicate {
			continue
		}
		seenDependencies[dependencyNode.key] = struct{}{}
		node.dependencies = append(node.dependencies, dependencyNode)
		dependencyNode.dependents = append(dependencyNode.dependents, node)
	}

	resolver.path = resolver.path[:len(resolver.path)-1]
	resolver.colors[key] = visitColorBlack
	resolver.graph.nodeByKey[key] = node
	resolver.graph.nodes = append(resolver.graph.nodes, node)
	return node, nil
}

func (resolver *graphResolver) cycleFrom(key string) error {
	startIndex := 0
	for pathIndex := range resolver.path {
		if resolver.path[pathIndex] == key {
			startIndex = pathIndex
			break
		}
	}
	cyclePath := make([]string, 0, len(resolver.path)-startIndex+1)
	cyclePath = append(cyclePath, resolver.path[startIndex:]...)
	cyclePath = append(cyclePath, key)
	return CycleError{Path: cyclePath}
}
