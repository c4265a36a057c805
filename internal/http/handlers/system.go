package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// SystemHandler reports host resource usage for the always-on daemon.
type SystemHandler struct {
	recordedDir string
}

// NewSystemHandler creates a new system handler. recordedDir is the
// directory whose free space matters for recording.
func NewSystemHandler(recordedDir string) *SystemHandler {
	return &SystemHandler{recordedDir: recordedDir}
}

// SystemStatusBody is the system status payload.
type SystemStatusBody struct {
	CPUCores       int     `json:"cpu_cores"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemoryTotalMB  float64 `json:"memory_total_mb"`
	MemoryUsedMB   float64 `json:"memory_used_mb"`
	MemoryPercent  float64 `json:"memory_percent"`
	DiskTotalGB    float64 `json:"disk_total_gb"`
	DiskFreeGB     float64 `json:"disk_free_gb"`
	DiskUsedPercent float64 `json:"disk_used_percent"`
}

// SystemStatusOutput is the output for the status endpoint.
type SystemStatusOutput struct {
	Body SystemStatusBody
}

// Register registers the system routes with the API.
func (h *SystemHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSystemStatus",
		Method:      http.MethodGet,
		Path:        "/system/status",
		Summary:     "Get host resource usage",
		Tags:        []string{"System"},
	}, h.GetStatus)
}

// GetStatus samples CPU, memory and recording-disk usage. Probe
// failures leave the corresponding fields zero.
func (h *SystemHandler) GetStatus(ctx context.Context, _ *struct{}) (*SystemStatusOutput, error) {
	body := SystemStatusBody{CPUCores: runtime.NumCPU()}

	if percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(percents) > 0 {
		body.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		body.MemoryTotalMB = float64(vm.Total) / 1024 / 1024
		body.MemoryUsedMB = float64(vm.Used) / 1024 / 1024
		body.MemoryPercent = vm.UsedPercent
	}
	if usage, err := disk.UsageWithContext(ctx, h.recordedDir); err == nil {
		body.DiskTotalGB = float64(usage.Total) / 1024 / 1024 / 1024
		body.DiskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
		body.DiskUsedPercent = usage.UsedPercent
	}

	return &SystemStatusOutput{Body: body}, nil
}
