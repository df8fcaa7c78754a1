package agent

import (
	"math"

	"fleetd/internal/model"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Snapshot collects a point-in-time telemetry reading. Individual probe
// failures degrade to zero values rather than failing the heartbeat.
func Snapshot() *model.Metrics {
	m := &model.Metrics{LoadAvg: make([]float64, 3)}

	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		m.CPULoad = round1(pcts[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		m.FreeMemPercentage = round1(float64(vm.Available) / float64(vm.Total) * 100)
	}
	if avg, err := load.Avg(); err == nil {
		m.LoadAvg = []float64{avg.Load1, avg.Load5, avg.Load15}
	}
	if du, err := disk.Usage("/"); err == nil {
		m.DiskUsage = model.DiskUsage{
			Size:           du.Total,
			Used:           du.Used,
			UsedPercentage: round1(du.UsedPercent),
		}
	}
	if counters, err := net.IOCounters(false); err == nil && len(counters) > 0 {
		m.NetworkTraffic = model.NetworkTraffic{
			Recived:     counters[0].BytesRecv,
			Transmitted: counters[0].BytesSent,
		}
	}
	if secs, err := host.Uptime(); err == nil {
		m.Uptime = splitUptime(secs)
	}

	return m
}

func splitUptime(secs uint64) model.Uptime {
	return model.Uptime{
		Days:    int(secs / 86400),
		Hours:   int(secs % 86400 / 3600),
		Minutes: int(secs % 3600 / 60),
		Seconds: int(secs % 60),
	}
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
