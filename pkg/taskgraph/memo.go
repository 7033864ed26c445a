package taskgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/tyemirov/stagehand/pkg/task"
)

const (
	memoVersionSeparatorConstant    = "+"
	memoDependencySeparatorConstant = "@"
	memoDigestLengthConstant        = 16
)

// memoVersion identifies a memoized result. It combines the task's own version with
// the memo versions of its direct dependencies, so a change anywhere upstream yields
// a different memo version.
type memoVersion struct {
	own              task.Version
	dependencyDigest string
}

func (version memoVersion) String() string {
	if len(version.dependencyDigest) == 0 {
		return version.own.String()
	}
	return version.own.String() + memoVersionSeparatorConstant + version.dependencyDigest
}

func (version memoVersion) Equal(other task.Version) bool {
	if other == nil {
		return false
	}
	return version.String() == other.String()
}

// memoVersions computes the memo version of every node. Stages are dependency-first,
// so dependencies are always computed before their dependents. A node whose version
// or any upstream version is missing has no memo version.
func memoVersions(stages []nodeStage) map[string]task.Version {
	versions := make(map[string]task.Version)
	for _, stage := range stages {
		for _, node := range stage.nodes {
			versions[node.key] = nodeMemoVersion(node, versions)
		}
	}
	return versions
}

func nodeMemoVersion(node *graphNode, computed map[string]task.Version) task.Version {
	ownVersion := node.task.Version()
	if ownVersion == nil {
		return nil
	}
	if len(node.dependencies) == 0 {
		return memoVersion{own: ownVersion}
	}

	var builder strings.Builder
	for _, dependency := range node.dependencies {
		dependencyVersion := computed[dependency.key]
		if dependencyVersion == nil {
			return nil
		}
		builder.WriteString(dependency.task.BaseKey())
		builder.WriteString(memoDependencySeparatorConstant)
		builder.WriteString(dependencyVersion.String())
		builder.WriteByte('\n')
	}
	digest := sha256.Sum256([]byte(builder.String()))
	return memoVersion{own: ownVersion, dependencyDigest: hex.EncodeToString(digest[:])[:memoDigestLengthConstant]}
}
