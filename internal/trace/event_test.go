package trace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilrun/statekit/internal/kernel"
)

func TestEventJSONRoundTrip(t *testing.T) {
	e := NewEvent(KindContextSwitch, time.Now().Truncate(time.Millisecond))
	e.TaskID = 7
	e.TaskName = "worker"
	e.FromID = 3
	e.FromName = "idle"
	e.Extra = map[string]interface{}{"priority": float64(5)}

	data, err := e.ToJSON()
	require.NoError(t, err)

	decoded, err := FromJSON(data)
	require.NoError(t, err)

	assert.Equal(t, e.Kind, decoded.Kind)
	assert.True(t, e.Time.Equal(decoded.Time))
	assert.Equal(t, e.TaskID, decoded.TaskID)
	assert.Equal(t, e.TaskName, decoded.TaskName)
	assert.Equal(t, e.FromID, decoded.FromID)
	assert.Equal(t, e.FromName, decoded.FromName)
	assert.Equal(t, e.Extra["priority"], decoded.Extra["priority"])
}

func TestFromJSONRejectsGarbage(t *testing.T) {
	_, err := FromJSON([]byte("not json"))
	assert.Error(t, err)
}

func TestSwitchHookToleratesNilSink(t *testing.T) {
	hook := SwitchHook(nil)
	k := kernel.New()
	assert.NotPanics(t, func() {
		hook(k.Idle(), k.Idle())
	})
}

func TestPublishHelpersToleratesNilSink(t *testing.T) {
	k := kernel.New()
	assert.NotPanics(t, func() {
		PublishTaskCreated(nil, k.Idle())
		PublishTaskTerminated(nil, k.Idle(), "normal")
	})
}
