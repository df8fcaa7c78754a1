package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_WrapsPayload(t *testing.T) {
	raw, err := Encode("TASK_REQUEST", TaskRequest{TaskID: "t1", Command: "ls"})
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "TASK_REQUEST", env.Type)

	var req TaskRequest
	require.NoError(t, json.Unmarshal(env.Payload, &req))
	assert.Equal(t, "t1", req.TaskID)
	assert.Equal(t, "ls", req.Command)
}

// Observers consume heartbeats with the metrics fields at the top level,
// next to workerId. The embedding keeps that shape.
func TestHeartbeat_FlatWireShape(t *testing.T) {
	hb := Heartbeat{
		WorkerID: "w1",
		Metrics: Metrics{
			CPULoad:        33.3,
			LoadAvg:        []float64{1, 2, 3},
			NetworkTraffic: NetworkTraffic{Recived: 10, Transmitted: 20},
		},
	}
	raw, err := json.Marshal(hb)
	require.NoError(t, err)

	var flat map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &flat))
	assert.Contains(t, flat, "workerId")
	assert.Contains(t, flat, "cpuLoad")
	assert.Contains(t, flat, "loadAvg")
	assert.Contains(t, flat, "networkTraffic")
	assert.NotContains(t, flat, "metrics")

	var nt NetworkTraffic
	require.NoError(t, json.Unmarshal(flat["networkTraffic"], &nt))
	assert.Equal(t, uint64(10), nt.Recived)
}

func TestTaskResultMessage_NullExitCode(t *testing.T) {
	raw, err := json.Marshal(TaskResultMessage{TaskID: "t1", Error: "spawn failed"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"exitCode":null`)
}
