package scene

import (
	"strconv"
	"strings"
)

// sceneToken is the collector's naming convention for scene files.
const sceneToken = "Scene_"

// Partition decides whether a named scene belongs to the split being loaded.
type Partition func(name string) bool

// Split selects one side of a held-out partition.
type Split int

const (
	SplitTrain Split = iota
	SplitTest
)

func (s Split) String() string {
	switch s {
	case SplitTrain:
		return "train"
	case SplitTest:
		return "test"
	default:
		return "unknown"
	}
}

// ParseSplit parses "train" or "test".
func ParseSplit(s string) (Split, bool) {
	switch strings.ToLower(s) {
	case "train":
		return SplitTrain, true
	case "test":
		return SplitTest, true
	}
	return 0, false
}

// All accepts every name.
func All() Partition {
	return func(string) bool { return true }
}

// SceneFiles accepts names following the Scene_<id> convention.
func SceneFiles() Partition {
	return func(name string) bool { return strings.Contains(name, sceneToken) }
}

// HeldOut partitions scenes on their Scene_<id> token. The test split keeps
// scenes whose id equals testID; the train split keeps every other scene
// file. The id must match as a whole number, so Scene_1 does not select
// Scene_10.
func HeldOut(testID int, split Split) Partition {
	return func(name string) bool {
		id, ok := SceneID(name)
		if !ok {
			return false
		}
		if split == SplitTest {
			return id == testID
		}
		return id != testID
	}
}

// SubstringHeldOut partitions on a plain substring test for "Scene_<id>".
// Scene_1 therefore also matches Scene_10 and Scene_11; use HeldOut unless
// that behaviour is required for compatibility with existing splits.
func SubstringHeldOut(testID int, split Split) Partition {
	token := sceneToken + strconv.Itoa(testID)
	return func(name string) bool {
		if !strings.Contains(name, sceneToken) {
			return false
		}
		if split == SplitTest {
			return strings.Contains(name, token)
		}
		return !strings.Contains(name, token)
	}
}

// SceneID extracts the numeric id following the first Scene_ token.
func SceneID(name string) (int, bool) {
	i := strings.Index(name, sceneToken)
	if i < 0 {
		return 0, false
	}
	rest := name[i+len(sceneToken):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	id, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return id, true
}
