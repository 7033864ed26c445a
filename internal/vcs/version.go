package vcs

import (
	"fmt"

	"github.com/tyemirov/stagehand/pkg/task"
)

const (
	// UntrackedVersionString identifies trees that have no commit history yet.
	UntrackedVersionString = "0000000000"

	dirtyVersionTemplateConstant = "%s-%d"
)

// TreeVersion is the content state of a source tree. DirtyTimestamp is the Unix time
// in seconds of the newest uncommitted change, or zero for a clean tree.
type TreeVersion struct {
	VersionString  string `yaml:"version_string" json:"version_string" mapstructure:"version_string"`
	DirtyTimestamp int64  `yaml:"dirty_timestamp,omitempty" json:"dirty_timestamp,omitempty" mapstructure:"dirty_timestamp"`
}

// String renders the version, suffixing dirty trees with their timestamp.
func (version TreeVersion) String() string {
	if version.DirtyTimestamp == 0 {
		return version.VersionString
	}
	return fmt.Sprintf(dirtyVersionTemplateConstant, version.VersionString, version.DirtyTimestamp)
}

// IsDirty reports whether the tree had uncommitted changes.
func (version TreeVersion) IsDirty() bool {
	return version.DirtyTimestamp != 0
}

// Equal compares both fields for TreeVersion values and falls back to the rendered
// form for other Version implementations.
func (version TreeVersion) Equal(other task.Version) bool {
	switch typed := other.(type) {
	case nil:
		return false
	case TreeVersion:
		return version == typed
	case *TreeVersion:
		return typed != nil && version == *typed
	default:
		return version.String() == other.String()
	}
}
