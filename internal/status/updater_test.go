package status

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/projectcontour/contour-sub001/internal/resource"
)

type sinkFunc func(ctx context.Context, update Update) error

func (f sinkFunc) Upsert(ctx context.Context, update Update) error {
	return f(ctx, update)
}

func TestEnqueueDedupe(t *testing.T) {
	t.Parallel()

	updater := NewUpdater(UpdaterConfig{Sink: sinkFunc(func(context.Context, Update) error {
		return nil
	})})

	key := resource.Key{Kind: resource.KindProxy, Namespace: "default", Name: "www"}
	record := Record{Verdict: VerdictValid, Description: "valid Proxy", ObservedRevision: 1}

	// a record identical to the last successful write is skipped
	updater.written[key] = record
	updater.Enqueue([]Update{{Key: key, Record: record}})
	_, found := updater.next()
	require.False(t, found)

	// a changed record is queued again
	changed := record
	changed.ObservedRevision = 2
	updater.Enqueue([]Update{{Key: key, Record: changed}})
	update, found := updater.next()
	require.True(t, found)
	require.Equal(t, changed, update.Record)

	// a newer enqueue replaces the queued write for the same key
	third := record
	third.ObservedRevision = 3
	updater.Enqueue([]Update{{Key: key, Record: changed}})
	updater.Enqueue([]Update{{Key: key, Record: third}})
	update, found = updater.next()
	require.True(t, found)
	require.EqualValues(t, 3, update.Record.ObservedRevision)
	_, found = updater.next()
	require.False(t, found)
}

func TestDrainOrderIsDeterministic(t *testing.T) {
	t.Parallel()

	updater := NewUpdater(UpdaterConfig{Sink: sinkFunc(func(context.Context, Update) error {
		return nil
	})})

	updates := []Update{
		{Key: resource.Key{Kind: resource.KindProxy, Namespace: "default", Name: "zz"}},
		{Key: resource.Key{Kind: resource.KindGateway, Namespace: "default", Name: "gw"}},
		{Key: resource.Key{Kind: resource.KindProxy, Namespace: "default", Name: "aa"}},
	}
	updater.Enqueue(updates)

	var drained []string
	for {
		update, found := updater.next()
		if !found {
			break
		}
		drained = append(drained, update.Key.String())
	}
	require.Equal(t, []string{
		"Gateway/default/gw",
		"Proxy/default/aa",
		"Proxy/default/zz",
	}, drained)
}
