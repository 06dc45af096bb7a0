package status

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/projectcontour/contour-sub001/internal/resource"
)

func TestAccumulatorVerdicts(t *testing.T) {
	t.Parallel()

	valid := resource.Key{Kind: resource.KindProxy, Namespace: "default", Name: "valid"}
	warned := resource.Key{Kind: resource.KindProxy, Namespace: "default", Name: "warned"}
	invalid := resource.Key{Kind: resource.KindProxy, Namespace: "default", Name: "invalid"}
	orphan := resource.Key{Kind: resource.KindProxy, Namespace: "default", Name: "orphan"}

	acc := NewAccumulator()
	acc.Observe(valid, 1)
	acc.Observe(warned, 2)
	acc.Observe(invalid, 3)
	acc.Observe(orphan, 4)

	acc.AddWarning(warned, ReasonPolicyError, `route [prefix:/]`, "retry policy dropped")
	acc.AddError(invalid, ReasonIncludeNotFound, `include "default/missing"`, "include target does not exist")
	acc.AddError(invalid, ReasonServiceError, `route [prefix:/api]`, "no referenced service resolved")
	// orphaned wins the verdict even with findings attached
	acc.AddError(orphan, ReasonServiceError, `route [prefix:/]`, "no referenced service resolved")
	acc.MarkOrphaned(orphan)

	updates := acc.Finalize()
	require.Len(t, updates, 4)

	// deterministic ordering by key
	require.Equal(t, invalid, updates[0].Key)
	require.Equal(t, orphan, updates[1].Key)
	require.Equal(t, valid, updates[2].Key)
	require.Equal(t, warned, updates[3].Key)

	require.Equal(t, VerdictInvalid, updates[0].Record.Verdict)
	require.Equal(t, `include "default/missing": include target does not exist (and 1 more)`, updates[0].Record.Description)
	require.EqualValues(t, 3, updates[0].Record.ObservedRevision)

	require.Equal(t, VerdictOrphaned, updates[1].Record.Verdict)
	require.Len(t, updates[1].Record.Conditions, 2)

	require.Equal(t, VerdictValid, updates[2].Record.Verdict)
	require.Equal(t, "valid Proxy", updates[2].Record.Description)
	require.Empty(t, updates[2].Record.Conditions)

	require.Equal(t, VerdictValidWithWarnings, updates[3].Record.Verdict)
	require.Equal(t, "route [prefix:/]: retry policy dropped", updates[3].Record.Description)
}

func TestRecordEqual(t *testing.T) {
	t.Parallel()

	base := Record{
		Verdict:          VerdictInvalid,
		Description:      "include missing",
		ObservedRevision: 7,
		Conditions: []SubCondition{
			{Severity: SeverityError, Reason: ReasonIncludeNotFound, Subject: "include", Message: "missing"},
		},
	}

	require.True(t, base.Equal(Record{
		Verdict:          VerdictInvalid,
		Description:      "include missing",
		ObservedRevision: 7,
		Conditions: []SubCondition{
			{Severity: SeverityError, Reason: ReasonIncludeNotFound, Subject: "include", Message: "missing"},
		},
	}))

	changed := base
	changed.ObservedRevision = 8
	require.False(t, base.Equal(changed))

	changed = base
	changed.Conditions = nil
	require.False(t, base.Equal(changed))

	changed = base
	changed.Conditions = []SubCondition{
		{Severity: SeverityWarning, Reason: ReasonIncludeNotFound, Subject: "include", Message: "missing"},
	}
	require.False(t, base.Equal(changed))
}
