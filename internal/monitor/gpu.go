package monitor

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
)

// GPUDevice is one GPU row of the status snapshot.
type GPUDevice struct {
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	TotalMemoryGB float64 `json:"total_memory_gb"`
	UsedMemoryGB  float64 `json:"used_memory_gb"`
	MemoryPercent float64 `json:"memory_percent"`
}

// GPUInfo is the GPU section of the status snapshot.
type GPUInfo struct {
	Available bool        `json:"available"`
	Devices   []GPUDevice `json:"devices,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// GPU queries nvidia-smi for device memory usage. Hosts without the tool
// (or without a GPU) report available=false.
func (m *Monitor) GPU(ctx context.Context) GPUInfo {
	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=index,name,memory.total,memory.used",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return GPUInfo{Reason: "nvidia-smi unavailable"}
	}

	var devices []GPUDevice
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Split(line, ",")
		if len(fields) < 4 {
			continue
		}
		index, _ := strconv.Atoi(strings.TrimSpace(fields[0]))
		totalMiB, _ := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		usedMiB, _ := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)

		d := GPUDevice{
			Index:         index,
			Name:          strings.TrimSpace(fields[1]),
			TotalMemoryGB: round2(totalMiB / 1024),
			UsedMemoryGB:  round2(usedMiB / 1024),
		}
		if totalMiB > 0 {
			d.MemoryPercent = round2(usedMiB / totalMiB * 100)
		}
		devices = append(devices, d)
	}

	if len(devices) == 0 {
		return GPUInfo{Reason: "no devices"}
	}
	return GPUInfo{Available: true, Devices: devices}
}
