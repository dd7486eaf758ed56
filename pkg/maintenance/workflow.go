package maintenance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/Kitoverdie1/uph-mem-system/pkg/registry"
)

// ErrReasonRequired is returned when a rejection carries no reason.
var ErrReasonRequired = fmt.Errorf("%w: a rejection reason is required", registry.ErrInvalidInput)

// ErrCodeInvalidTransition identifies a TransitionError.
const ErrCodeInvalidTransition = "MAINTENANCE_INVALID_TRANSITION"

// TransitionRule defines an allowed workflow move.
type TransitionRule struct {
	From              State
	To                State
	RequiresPrivilege bool
}

// DefaultTransitions lists the moves of the repair workflow. Any user may
// report a repair, and may withdraw a report that is pending or was sent
// back. Only privileged users confirm, reject, complete or retire.
var DefaultTransitions = []TransitionRule{
	{From: StateAny, To: StatePending},
	{From: StatePending, To: StateNeverReported},
	{From: StateRejected, To: StateNeverReported},
	{From: StatePending, To: StateInProgress, RequiresPrivilege: true},
	{From: StatePending, To: StateRejected, RequiresPrivilege: true},
	{From: StateInProgress, To: StateDone, RequiresPrivilege: true},
	{From: StateAny, To: StateDecommissioned, RequiresPrivilege: true},
}

// TransitionError is a structured error for moves the workflow refuses.
type TransitionError struct {
	Code    string `json:"code"`
	From    State  `json:"from"`
	To      State  `json:"to"`
	Message string `json:"message"`
}

func (e *TransitionError) Error() string {
	return e.Message
}

// IsTransitionError reports whether err wraps a TransitionError.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// userEditable are the only fields an unprivileged user may change.
var userEditable = []string{
	registry.FieldMaintenance,
	registry.FieldRepairNote,
	registry.FieldRepairReportedDate,
}

// Workflow applies repair workflow rules using the status labels of one
// registry document.
type Workflow struct {
	labels      map[State]string
	transitions []TransitionRule
	editable    mapset.Set[string]
}

// New creates a workflow whose status labels are taken from choices, falling
// back to the standard labels for states the list does not name.
func New(choices []string) *Workflow {
	labels := make(map[State]string, len(standardLabels))
	for s, l := range standardLabels {
		labels[s] = l
	}
	for i := len(choices) - 1; i >= 0; i-- {
		if s := StateOf(choices[i]); s != StateUnknown {
			labels[s] = choices[i]
		}
	}
	return &Workflow{
		labels:      labels,
		transitions: DefaultTransitions,
		editable:    mapset.NewSet(userEditable...),
	}
}

// Label returns the status label written for s.
func (w *Workflow) Label(s State) string {
	return w.labels[s]
}

// AllowedTransitions returns the states reachable from the given state.
func (w *Workflow) AllowedTransitions(from State, privileged bool) []State {
	seen := mapset.NewThreadUnsafeSet[State]()
	var out []State
	for _, t := range w.transitions {
		if t.From != from && t.From != StateAny {
			continue
		}
		if t.RequiresPrivilege && !privileged {
			continue
		}
		if t.To == from || seen.Contains(t.To) {
			continue
		}
		seen.Add(t.To)
		out = append(out, t.To)
	}
	return out
}

// ValidateTransition checks a move against the transition table. A move the
// table only allows for privileged users fails with ErrForbidden for others.
func (w *Workflow) ValidateTransition(from, to State, privileged bool) error {
	needsPrivilege := false
	for _, t := range w.transitions {
		if (t.From != from && t.From != StateAny) || t.To != to {
			continue
		}
		if !t.RequiresPrivilege || privileged {
			return nil
		}
		needsPrivilege = true
	}
	if needsPrivilege {
		return fmt.Errorf("%w: moving a repair request to %s requires privilege", registry.ErrForbidden, to)
	}
	return &TransitionError{
		Code:    ErrCodeInvalidTransition,
		From:    from,
		To:      to,
		Message: fmt.Sprintf("repair request cannot move from %s to %s", from, to),
	}
}

// Apply returns rec updated with the given fields. Unprivileged actors only
// touch the maintenance fields, and any status they set other than
// never-reported becomes a pending report stamped with their name.
// Privileged actors set fields as given. The record id never changes.
func (w *Workflow) Apply(rec, updates *registry.Record, actor Actor, now time.Time) (*registry.Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: no record to update", registry.ErrInvalidInput)
	}
	if !actor.Privileged && actor.Identity == "" {
		return nil, fmt.Errorf("%w: an identified user is required", registry.ErrForbidden)
	}

	sanitized := registry.NewRecord()
	for _, k := range updates.Keys() {
		if actor.Privileged || w.editable.Contains(k) {
			v, _ := updates.Get(k)
			sanitized.Set(k, v)
		}
	}

	if !actor.Privileged && sanitized.Has(registry.FieldMaintenance) {
		if err := w.coerceStatus(rec, sanitized, actor, now); err != nil {
			return nil, err
		}
	}

	out := rec.Clone()
	out.Merge(sanitized)
	if id := rec.ID(); id != "" {
		out.Set(registry.FieldID, id)
	}
	return out, nil
}

// Confirm accepts a pending repair report and moves it in progress.
func (w *Workflow) Confirm(rec *registry.Record, actor Actor, now time.Time) (*registry.Record, error) {
	if err := w.checkDecision(rec, actor, StateInProgress); err != nil {
		return nil, err
	}
	out := rec.Clone()
	out.Set(registry.FieldMaintenance, w.Label(StateInProgress))
	out.Set(registry.FieldRepairConfirmedDate, registry.FormatDate(now))
	out.Set(registry.FieldRepairConfirmer, actor.Name())
	out.Set(registry.FieldRepairConfirmedAt, registry.FormatTimestamp(now))
	return out, nil
}

// Reject sends a pending repair report back with a reason.
func (w *Workflow) Reject(rec *registry.Record, actor Actor, reason string, now time.Time) (*registry.Record, error) {
	reason = strings.TrimSpace(reason)
	if err := w.checkDecision(rec, actor, StateRejected); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, ErrReasonRequired
	}
	out := rec.Clone()
	out.Set(registry.FieldMaintenance, w.Label(StateRejected))
	out.Set(registry.FieldRepairRejectedDate, registry.FormatDate(now))
	out.Set(registry.FieldRepairRejecter, actor.Name())
	out.Set(registry.FieldRepairRejectReason, reason)
	out.Set(registry.FieldRepairRejectedAt, registry.FormatTimestamp(now))
	return out, nil
}

// coerceStatus rewrites the status an unprivileged user submitted. A blank
// status is dropped. A withdrawal the table does not allow keeps the current
// status. Anything else becomes a stamped pending report.
func (w *Workflow) coerceStatus(rec, sanitized *registry.Record, actor Actor, now time.Time) error {
	status := strings.TrimSpace(sanitized.Text(registry.FieldMaintenance))
	from := StateOf(rec.Text(registry.FieldMaintenance))

	if status == "" {
		sanitized.Delete(registry.FieldMaintenance)
		return nil
	}
	if StateOf(status) == StateNeverReported {
		if from == StateNeverReported || w.ValidateTransition(from, StateNeverReported, false) == nil {
			sanitized.Set(registry.FieldMaintenance, w.Label(StateNeverReported))
		} else {
			sanitized.Delete(registry.FieldMaintenance)
		}
		return nil
	}

	if err := w.ValidateTransition(from, StatePending, false); err != nil {
		return err
	}
	sanitized.Set(registry.FieldMaintenance, w.Label(StatePending))
	if sanitized.Text(registry.FieldRepairReportedDate) == "" {
		sanitized.Set(registry.FieldRepairReportedDate, registry.FormatDate(now))
	}
	sanitized.Set(registry.FieldRepairReporter, actor.Name())
	sanitized.Set(registry.FieldRepairReportedAt, registry.FormatTimestamp(now))
	return nil
}

func (w *Workflow) checkDecision(rec *registry.Record, actor Actor, to State) error {
	if rec == nil {
		return fmt.Errorf("%w: no record to update", registry.ErrInvalidInput)
	}
	if !actor.Privileged {
		return fmt.Errorf("%w: deciding on repair reports requires privilege", registry.ErrForbidden)
	}
	return w.ValidateTransition(StateOf(rec.Text(registry.FieldMaintenance)), to, true)
}
