// Package maintenance implements the repair request workflow carried on
// asset records: reporting by ordinary users, and confirmation or rejection
// by privileged users.
package maintenance

import (
	"strings"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// State is the workflow position of an asset, derived from its maintenance
// status label.
type State string

const (
	StateUnknown        State = "unknown"
	StateNeverReported  State = "never_reported"
	StatePending        State = "pending"
	StateRejected       State = "rejected"
	StateInProgress     State = "in_progress"
	StateDone           State = "done"
	StateDecommissioned State = "decommissioned"

	// StateAny matches every state in a TransitionRule.
	StateAny State = "*"
)

var stateMarkers = []struct {
	state  State
	marker string
}{
	{StateNeverReported, registry.MarkerNeverReported},
	{StatePending, registry.MarkerPending},
	{StateRejected, registry.MarkerRejected},
	{StateInProgress, registry.MarkerInProgress},
	{StateDone, registry.MarkerDone},
	{StateDecommissioned, registry.MarkerDecommissioned},
}

var standardLabels = map[State]string{
	StateNeverReported:  registry.StatusNeverReported,
	StatePending:        registry.StatusPending,
	StateRejected:       registry.StatusRejected,
	StateInProgress:     registry.StatusInProgress,
	StateDone:           registry.StatusDone,
	StateDecommissioned: registry.StatusDecommissioned,
}

// StateOf classifies a status label by the fragment it contains, so labels
// renamed by users keep their meaning.
func StateOf(label string) State {
	for _, sm := range stateMarkers {
		if strings.Contains(label, sm.marker) {
			return sm.state
		}
	}
	return StateUnknown
}

// Actor is the user performing a workflow operation.
type Actor struct {
	Identity    string
	DisplayName string
	Privileged  bool
}

// Name is the display name, or the identity when there is none.
func (a Actor) Name() string {
	if n := strings.TrimSpace(a.DisplayName); n != "" {
		return n
	}
	return a.Identity
}
