package convert

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	httptransport "imgconv-server-go/internal/transport/http"
)

// SystemInfo 主机资源快照
type SystemInfo struct {
	Hostname    string  `json:"hostname,omitempty"`
	OS          string  `json:"os"`
	Platform    string  `json:"platform,omitempty"`
	Uptime      uint64  `json:"uptime_seconds,omitempty"`
	CPUCount    int     `json:"cpu_count"`
	CPUPercent  float64 `json:"cpu_percent"`
	MemTotal    uint64  `json:"mem_total"`
	MemUsed     uint64  `json:"mem_used"`
	MemPercent  float64 `json:"mem_percent"`
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc"`
	CollectedAt string  `json:"collected_at"`
}

// handleSystem 返回主机CPU与内存状态
// @Summary 主机状态
// @Tags Meta
// @Produce json
// @Router /system [get]
func (s *Service) handleSystem(c *gin.Context) {
	ctx := c.Request.Context()
	info := SystemInfo{
		OS:          runtime.GOOS,
		CPUCount:    runtime.NumCPU(),
		Goroutines:  runtime.NumGoroutine(),
		CollectedAt: time.Now().Format(time.RFC3339),
	}

	if h, err := host.InfoWithContext(ctx); err == nil {
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		info.Uptime = h.Uptime
	} else {
		s.logger.DebugTag("统计", "读取主机信息失败: %v", err)
	}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		info.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.MemTotal = vm.Total
		info.MemUsed = vm.Used
		info.MemPercent = vm.UsedPercent
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	info.HeapAlloc = ms.HeapAlloc

	httptransport.RespondSuccess(c, http.StatusOK, info, "")
}
