package status

import (
	"fmt"
	"sort"

	"github.com/projectcontour/contour-sub001/internal/resource"
)

// Accumulator collects findings against source documents over the course
// of one build and folds them into Records when the build finishes. It is
// not safe for concurrent use; each build owns its own Accumulator.
type Accumulator struct {
	statuses map[resource.Key]*documentStatus
}

type documentStatus struct {
	revision   int64
	orphaned   bool
	conditions []SubCondition
}

func NewAccumulator() *Accumulator {
	return &Accumulator{statuses: make(map[resource.Key]*documentStatus)}
}

// Observe registers a document so it receives a record even when no
// findings accumulate against it.
func (a *Accumulator) Observe(key resource.Key, revision int64) {
	a.status(key).revision = revision
}

// AddError records a fatal finding against the named sub-structure of a
// document.
func (a *Accumulator) AddError(key resource.Key, reason, subject, message string) {
	a.add(key, SubCondition{Severity: SeverityError, Reason: reason, Subject: subject, Message: message})
}

// AddWarning records a non-fatal finding; the offending field is dropped
// but the unit keeps serving.
func (a *Accumulator) AddWarning(key resource.Key, reason, subject, message string) {
	a.add(key, SubCondition{Severity: SeverityWarning, Reason: reason, Subject: subject, Message: message})
}

// MarkOrphaned flags a document as unreachable from any root. Orphaned
// wins the verdict regardless of other findings.
func (a *Accumulator) MarkOrphaned(key resource.Key) {
	status := a.status(key)
	status.orphaned = true
	status.conditions = append(status.conditions, SubCondition{
		Severity: SeverityWarning,
		Reason:   ReasonOrphaned,
		Subject:  "document",
		Message:  "document is not reachable from any root",
	})
}

// Finalize folds the collected findings into one record per observed
// document, ordered by key for deterministic emission.
func (a *Accumulator) Finalize() []Update {
	updates := make([]Update, 0, len(a.statuses))
	for key, status := range a.statuses {
		updates = append(updates, Update{Key: key, Record: status.record(key)})
	}
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].Key.String() < updates[j].Key.String()
	})
	return updates
}

func (a *Accumulator) add(key resource.Key, condition SubCondition) {
	status := a.status(key)
	status.conditions = append(status.conditions, condition)
}

func (a *Accumulator) status(key resource.Key) *documentStatus {
	status, found := a.statuses[key]
	if !found {
		status = &documentStatus{}
		a.statuses[key] = status
	}
	return status
}

func (s *documentStatus) record(key resource.Key) Record {
	record := Record{
		ObservedRevision: s.revision,
		Conditions:       s.conditions,
	}

	var firstError, firstWarning *SubCondition
	errors, warnings := 0, 0
	for i := range s.conditions {
		switch s.conditions[i].Severity {
		case SeverityError:
			if firstError == nil {
				firstError = &s.conditions[i]
			}
			errors++
		case SeverityWarning:
			if firstWarning == nil {
				firstWarning = &s.conditions[i]
			}
			warnings++
		}
	}

	switch {
	case s.orphaned:
		record.Verdict = VerdictOrphaned
		record.Description = "document is not reachable from any root"
	case errors > 0:
		record.Verdict = VerdictInvalid
		record.Description = describe(firstError, errors)
	case warnings > 0:
		record.Verdict = VerdictValidWithWarnings
		record.Description = describe(firstWarning, warnings)
	default:
		record.Verdict = VerdictValid
		record.Description = fmt.Sprintf("valid %s", key.Kind)
	}
	return record
}

func describe(condition *SubCondition, count int) string {
	description := fmt.Sprintf("%s: %s", condition.Subject, condition.Message)
	if count > 1 {
		description = fmt.Sprintf("%s (and %d more)", description, count-1)
	}
	return description
}
