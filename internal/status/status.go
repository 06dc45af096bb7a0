package status

import (
	"github.com/projectcontour/contour-sub001/internal/resource"
)

// Verdict is the summary outcome for one source document.
type Verdict string

const (
	VerdictValid             Verdict = "valid"
	VerdictValidWithWarnings Verdict = "valid-with-warnings"
	VerdictInvalid           Verdict = "invalid"
	// VerdictOrphaned marks a document no root reaches. Not an error on
	// the document itself, only a statement that it is unreachable.
	VerdictOrphaned Verdict = "orphaned"
)

// Severity grades a condition. Errors remove the offending unit from the
// graph; warnings leave it serving with the offending field dropped.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Condition reasons. These are stable API for operators and tooling.
const (
	ReasonDelegationCycle    = "DelegationCycle"
	ReasonIncludeNotFound    = "IncludeNotFound"
	ReasonIncludeError       = "IncludeError"
	ReasonSubtreeExcluded    = "SubtreeExcluded"
	ReasonInvalidConditions  = "InvalidConditions"
	ReasonVirtualHostError   = "VirtualHostError"
	ReasonTLSError           = "TLSError"
	ReasonRouteError         = "RouteError"
	ReasonServiceError       = "ServiceError"
	ReasonPolicyError        = "PolicyError"
	ReasonListenerError      = "ListenerError"
	ReasonListenerConflict   = "ListenerConflict"
	ReasonPortConflict       = "PortConflict"
	ReasonNoMatchingParent   = "NoMatchingParent"
	ReasonNoMatchingHostname = "NoMatchingHostname"
	ReasonOrphaned           = "Orphaned"
)

// SubCondition pins one finding to the part of the document it concerns.
type SubCondition struct {
	Severity Severity
	Reason   string
	// Subject names the offending sub-structure: an include edge, a
	// route, a listener, a TLS reference.
	Subject string
	Message string
}

// Record is the complete status of one document as observed by one
// build.
type Record struct {
	Verdict     Verdict
	Description string
	// ObservedRevision is the document revision the build consumed.
	ObservedRevision int64
	Conditions       []SubCondition
}

// Equal reports whether two records carry the same information. Used to
// suppress redundant sink writes.
func (r Record) Equal(other Record) bool {
	if r.Verdict != other.Verdict ||
		r.Description != other.Description ||
		r.ObservedRevision != other.ObservedRevision ||
		len(r.Conditions) != len(other.Conditions) {
		return false
	}
	for i, condition := range r.Conditions {
		if condition != other.Conditions[i] {
			return false
		}
	}
	return true
}

// Update binds a record to the document it describes.
type Update struct {
	Key    resource.Key
	Record Record
}
