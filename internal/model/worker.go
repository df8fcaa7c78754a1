package model

// WorkerStatus worker node status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "IDLE"    // Connected, no task in flight
	WorkerStatusBusy    WorkerStatus = "BUSY"    // Executing a dispatched task
	WorkerStatusOffline WorkerStatus = "OFFLINE" // Connection lost
)

func (s WorkerStatus) String() string {
	return string(s)
}

// DiskUsage disk usage snapshot
type DiskUsage struct {
	Size           uint64  `json:"size"`
	Used           uint64  `json:"used"`
	UsedPercentage float64 `json:"usedPercentage"`
}

// NetworkTraffic cumulative network counters.
// The "recived" spelling is part of the wire contract.
type NetworkTraffic struct {
	Recived     uint64 `json:"recived"`
	Transmitted uint64 `json:"transmitted"`
}

// Uptime host uptime broken into display units
type Uptime struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// Metrics telemetry snapshot carried by a heartbeat.
// Each snapshot expires independently of the worker's status.
type Metrics struct {
	CPULoad           float64        `json:"cpuLoad"`
	FreeMemPercentage float64        `json:"freeMemPercentage"`
	LoadAvg           []float64      `json:"loadAvg"`
	DiskUsage         DiskUsage      `json:"diskUsage"`
	NetworkTraffic    NetworkTraffic `json:"networkTraffic"`
	Uptime            Uptime         `json:"uptime"`
}

// Worker roster entry returned by the workers API
type Worker struct {
	WorkerID string       `json:"workerId"`
	Status   WorkerStatus `json:"status"`
	Metrics  *Metrics     `json:"metrics"`
}

// Heartbeat wire payload (worker -> master), rebroadcast verbatim to observers
type Heartbeat struct {
	WorkerID string `json:"workerId"`
	Metrics
}
