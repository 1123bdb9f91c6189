package reconcile

import "fmt"

// CheckMode controls whether [Service.CheckAndReconcile] runs a pass.
type CheckMode int

const (
	// CheckModeFull runs the drift detector.
	CheckModeFull CheckMode = iota
	// CheckModeSkip returns immediately. Update callbacks receive it so that a
	// re-apply triggered by a pass does not start another pass.
	CheckModeSkip
)

func (m CheckMode) String() string {
	switch m {
	case CheckModeFull:
		return "full"
	case CheckModeSkip:
		return "skip"
	}

	return fmt.Sprintf("CheckMode(%d)", int(m))
}

// State is the observable state of a [Service].
type State int

const (
	StateNoConfiguration State = iota
	StateConsistent
	StateDiverged
)

func (s State) String() string {
	switch s {
	case StateNoConfiguration:
		return "no-configuration"
	case StateConsistent:
		return "consistent"
	case StateDiverged:
		return "diverged"
	}

	return fmt.Sprintf("State(%d)", int(s))
}
