package entitlement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A service constructed without metrics must run uninstrumented, so every
// recording method has to tolerate a nil receiver.
func TestMetricsNilReceiver(t *testing.T) {
	ctx := context.Background()
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRegistration(ctx, "created")
		m.RecordAuthAttempt(ctx, "success")
		m.RecordHWIDReset(ctx, "user", "success")
		m.RecordTimeExtension(ctx)
		m.RecordKeyCollision(ctx)
	})
}

func TestServiceWithoutMetricsRecordsNothingAndWorks(t *testing.T) {
	st := newFakeStore()
	svc, _ := newTestService(t, st)

	ctx := context.Background()
	reg, err := svc.Register(ctx, "U1", "alice", "30d")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, reg.Key, "HW-1", "")
	require.NoError(t, err)

	_, err = svc.ResetHWID(ctx, "U1", false)
	require.NoError(t, err)

	_, err = svc.ExtendTime(ctx, "U1", "10d")
	require.NoError(t, err)
}
