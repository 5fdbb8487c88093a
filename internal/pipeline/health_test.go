package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealth_RecordSuccess(t *testing.T) {
	h := NewHealth("processor")
	h.RecordSuccess()

	snap := h.Snapshot()
	assert.Equal(t, string(HealthStatusHealthy), snap.Status)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.NotNil(t, snap.LastSuccessAt)
}

func TestHealth_RecordFailure_Threshold(t *testing.T) {
	h := NewHealth("processor")
	for i := 0; i < DefaultUnhealthyThreshold-1; i++ {
		transitioned := h.RecordFailure()
		assert.False(t, transitioned, "should not transition before threshold")
	}

	transitioned := h.RecordFailure()
	assert.True(t, transitioned, "should transition at threshold")
	assert.Equal(t, string(HealthStatusUnhealthy), h.Snapshot().Status)
}

func TestHealth_RecordSuccess_Recovery(t *testing.T) {
	h := NewHealth("processor")
	for i := 0; i < DefaultUnhealthyThreshold; i++ {
		h.RecordFailure()
	}
	assert.Equal(t, string(HealthStatusUnhealthy), h.Snapshot().Status)

	recovered := h.RecordSuccess()
	assert.True(t, recovered)
	assert.Equal(t, string(HealthStatusHealthy), h.Snapshot().Status)
}

func TestHealth_RecordLatency_Degraded(t *testing.T) {
	h := NewHealth("processor")
	h.RecordSuccess()

	for i := 0; i < latencyWindowSize; i++ {
		h.RecordLatency(10 * time.Second)
	}

	assert.Equal(t, string(HealthStatusDegraded), h.Snapshot().Status)
}

func TestHealth_RecordLatency_RecoverFromDegraded(t *testing.T) {
	h := NewHealth("processor")
	h.RecordSuccess()

	for i := 0; i < latencyWindowSize; i++ {
		h.RecordLatency(10 * time.Second)
	}
	assert.Equal(t, string(HealthStatusDegraded), h.Snapshot().Status)

	for i := 0; i < latencyWindowSize; i++ {
		h.RecordLatency(100 * time.Millisecond)
	}

	h.RecordSuccess()
	assert.Equal(t, string(HealthStatusHealthy), h.Snapshot().Status)
}

func TestHealth_RecordLatency_DoesNotOverrideUnhealthy(t *testing.T) {
	h := NewHealth("processor")
	for i := 0; i < DefaultUnhealthyThreshold; i++ {
		h.RecordFailure()
	}
	assert.Equal(t, string(HealthStatusUnhealthy), h.Snapshot().Status)

	h.RecordLatency(10 * time.Millisecond)
	assert.Equal(t, string(HealthStatusUnhealthy), h.Snapshot().Status)
}

func TestHealth_Snapshot_Fields(t *testing.T) {
	h := NewHealth("processor")
	snap := h.Snapshot()

	assert.Equal(t, "processor", snap.Name)
	assert.Equal(t, string(HealthStatusUnknown), snap.Status)
	assert.Nil(t, snap.LastSuccessAt)
	assert.Nil(t, snap.LastFailureAt)
}

func TestHealth_RecordSuccessAfterHighLatency_Degraded(t *testing.T) {
	h := NewHealth("processor")

	for i := 0; i < latencyWindowSize; i++ {
		h.RecordLatency(10 * time.Second)
	}

	h.RecordSuccess()
	assert.Equal(t, string(HealthStatusDegraded), h.Snapshot().Status)
}
