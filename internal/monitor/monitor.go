// Package monitor snapshots host resources (CPU, memory, GPU, disk,
// uptime) for the admin status endpoints and the health evaluation. Every
// probe is fail-soft: an unavailable source yields a section with
// available=false instead of an error.
package monitor

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Health thresholds, in percent.
const (
	cpuWarnPercent    = 90
	memWarnPercent    = 90
	memLivePercentMax = 95
)

// Monitor answers resource questions for the admin surfaces.
type Monitor struct {
	startTime time.Time
}

// New creates a Monitor anchored at the process start.
func New() *Monitor {
	return &Monitor{startTime: time.Now()}
}

// CPUInfo is the CPU section of the status snapshot.
type CPUInfo struct {
	Available    bool    `json:"available"`
	Percent      float64 `json:"percent"`
	CountLogical int     `json:"count_logical"`
	Error        string  `json:"error,omitempty"`
}

// MemoryInfo is the memory section of the status snapshot.
type MemoryInfo struct {
	Available   bool    `json:"available"`
	TotalGB     float64 `json:"total_gb"`
	AvailableGB float64 `json:"available_gb"`
	UsedGB      float64 `json:"used_gb"`
	Percent     float64 `json:"percent"`
	Error       string  `json:"error,omitempty"`
}

// DiskInfo is the disk section of the status snapshot.
type DiskInfo struct {
	Available bool    `json:"available"`
	TotalGB   float64 `json:"total_gb"`
	UsedGB    float64 `json:"used_gb"`
	FreeGB    float64 `json:"free_gb"`
	Percent   float64 `json:"percent"`
	Error     string  `json:"error,omitempty"`
}

// UptimeInfo reports application and system uptime.
type UptimeInfo struct {
	AppUptimeSeconds    int64  `json:"app_uptime_seconds"`
	SystemUptimeSeconds int64  `json:"system_uptime_seconds,omitempty"`
	AppStartTime        string `json:"app_start_time"`
}

// SystemInfo is the static host section.
type SystemInfo struct {
	Platform     string `json:"platform"`
	Architecture string `json:"architecture"`
	GoVersion    string `json:"go_version"`
	Hostname     string `json:"hostname"`
	NumCPU       int    `json:"num_cpu"`
}

// FullStatus is the complete admin snapshot.
type FullStatus struct {
	Timestamp string     `json:"timestamp"`
	System    SystemInfo `json:"system"`
	CPU       CPUInfo    `json:"cpu"`
	Memory    MemoryInfo `json:"memory"`
	GPU       GPUInfo    `json:"gpu"`
	Disk      DiskInfo   `json:"disk"`
	Uptime    UptimeInfo `json:"uptime"`
}

// CPU probes the instantaneous CPU utilisation.
func (m *Monitor) CPU(ctx context.Context) CPUInfo {
	percs, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percs) == 0 {
		return CPUInfo{Error: errString(err)}
	}
	logical, _ := cpu.CountsWithContext(ctx, true)
	return CPUInfo{
		Available:    true,
		Percent:      round2(percs[0]),
		CountLogical: logical,
	}
}

// Memory probes virtual memory usage.
func (m *Monitor) Memory(ctx context.Context) MemoryInfo {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryInfo{Error: errString(err)}
	}
	return MemoryInfo{
		Available:   true,
		TotalGB:     toGB(vm.Total),
		AvailableGB: toGB(vm.Available),
		UsedGB:      toGB(vm.Used),
		Percent:     round2(vm.UsedPercent),
	}
}

// Disk probes the working directory's filesystem.
func (m *Monitor) Disk(ctx context.Context) DiskInfo {
	wd, err := os.Getwd()
	if err != nil {
		return DiskInfo{Error: err.Error()}
	}
	du, err := disk.UsageWithContext(ctx, wd)
	if err != nil {
		return DiskInfo{Error: err.Error()}
	}
	return DiskInfo{
		Available: true,
		TotalGB:   toGB(du.Total),
		UsedGB:    toGB(du.Used),
		FreeGB:    toGB(du.Free),
		Percent:   round2(du.UsedPercent),
	}
}

// Uptime reports app and system uptime.
func (m *Monitor) Uptime(ctx context.Context) UptimeInfo {
	info := UptimeInfo{
		AppUptimeSeconds: int64(time.Since(m.startTime).Seconds()),
		AppStartTime:     m.startTime.UTC().Format(time.RFC3339),
	}
	if up, err := host.UptimeWithContext(ctx); err == nil {
		info.SystemUptimeSeconds = int64(up)
	}
	return info
}

// System reports static host facts.
func (m *Monitor) System() SystemInfo {
	hostname, _ := os.Hostname()
	return SystemInfo{
		Platform:     runtime.GOOS,
		Architecture: runtime.GOARCH,
		GoVersion:    runtime.Version(),
		Hostname:     hostname,
		NumCPU:       runtime.NumCPU(),
	}
}

// FullStatus assembles the complete snapshot.
func (m *Monitor) FullStatus(ctx context.Context) FullStatus {
	return FullStatus{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		System:    m.System(),
		CPU:       m.CPU(ctx),
		Memory:    m.Memory(ctx),
		GPU:       m.GPU(ctx),
		Disk:      m.Disk(ctx),
		Uptime:    m.Uptime(ctx),
	}
}

// HealthCheck is the condensed health view.
type HealthCheck struct {
	Status        string   `json:"status"` // healthy | warning
	Issues        []string `json:"issues"`
	Timestamp     string   `json:"timestamp"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
}

// HealthCheck evaluates the warn thresholds.
func (m *Monitor) HealthCheck(ctx context.Context) HealthCheck {
	cpuInfo := m.CPU(ctx)
	memInfo := m.Memory(ctx)

	issues := []string{}
	if cpuInfo.Available && cpuInfo.Percent > cpuWarnPercent {
		issues = append(issues, "cpu usage high")
	}
	if memInfo.Available && memInfo.Percent > memWarnPercent {
		issues = append(issues, "memory usage high")
	}

	status := "healthy"
	if len(issues) > 0 {
		status = "warning"
	}
	return HealthCheck{
		Status:        status,
		Issues:        issues,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		CPUPercent:    cpuInfo.Percent,
		MemoryPercent: memInfo.Percent,
	}
}

// MemoryOK reports whether memory usage is below the liveness ceiling.
// Probing failures count as OK so a broken probe never kills the pod.
func (m *Monitor) MemoryOK(ctx context.Context) bool {
	info := m.Memory(ctx)
	if !info.Available {
		return true
	}
	return info.Percent < memLivePercentMax
}

func toGB(b uint64) float64 { return round2(float64(b) / (1 << 30)) }

func round2(v float64) float64 { return float64(int64(v*100+0.5)) / 100 }

func errString(err error) string {
	if err == nil {
		return "no data"
	}
	return err.Error()
}
