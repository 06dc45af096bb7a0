package status_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/projectcontour/contour-sub001/internal/resource"
	"github.com/projectcontour/contour-sub001/internal/status"
	"github.com/projectcontour/contour-sub001/internal/status/mocks"
)

func TestRunWritesQueuedRecords(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sink := mocks.NewMockSink(ctrl)
	updater := status.NewUpdater(status.UpdaterConfig{Sink: sink})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = updater.Run(ctx)
	}()

	proxyKey := resource.Key{Kind: resource.KindProxy, Namespace: "default", Name: "www"}
	gatewayKey := resource.Key{Kind: resource.KindGateway, Namespace: "default", Name: "gw"}
	proxyRecord := status.Record{Verdict: status.VerdictValid, Description: "valid Proxy", ObservedRevision: 1}
	gatewayRecord := status.Record{Verdict: status.VerdictInvalid, Description: "listener conflict", ObservedRevision: 1}

	written := make(chan status.Update, 2)
	record := func(_ context.Context, update status.Update) error {
		written <- update
		return nil
	}

	sink.EXPECT().Upsert(gomock.Any(), status.Update{Key: gatewayKey, Record: gatewayRecord}).DoAndReturn(record)
	sink.EXPECT().Upsert(gomock.Any(), status.Update{Key: proxyKey, Record: proxyRecord}).DoAndReturn(record)

	updater.Enqueue([]status.Update{
		{Key: proxyKey, Record: proxyRecord},
		{Key: gatewayKey, Record: gatewayRecord},
	})

	// writes drain in key order
	requireWrite(t, written, gatewayKey)
	requireWrite(t, written, proxyKey)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("updater did not stop")
	}
}

func TestRunRetriesSinkFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sink := mocks.NewMockSink(ctrl)
	updater := status.NewUpdater(status.UpdaterConfig{Sink: sink})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = updater.Run(ctx)
	}()

	key := resource.Key{Kind: resource.KindProxy, Namespace: "default", Name: "www"}
	update := status.Update{Key: key, Record: status.Record{Verdict: status.VerdictValid, Description: "valid Proxy"}}

	written := make(chan struct{})
	gomock.InOrder(
		sink.EXPECT().Upsert(gomock.Any(), update).Return(errors.New("sink unavailable")),
		sink.EXPECT().Upsert(gomock.Any(), update).DoAndReturn(func(context.Context, status.Update) error {
			close(written)
			return nil
		}),
	)

	updater.Enqueue([]status.Update{update})

	select {
	case <-written:
	case <-time.After(5 * time.Second):
		t.Fatal("expected the failed write to be retried")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("updater did not stop")
	}
}

func requireWrite(t *testing.T, written chan status.Update, key resource.Key) {
	t.Helper()
	select {
	case update := <-written:
		require.Equal(t, key, update.Key)
	case <-time.After(time.Second):
		t.Fatalf("expected a status write for %s", key)
	}
}
