package api

import (
	"github.com/b3eb0o/LyngvigFyr/internal/catalog"
	"github.com/b3eb0o/LyngvigFyr/internal/timelapse"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	Location string `json:"location"`
}

type StatusResponse struct {
	timelapse.Status
	Disk *DiskResponse `json:"disk,omitempty"`
}

type DiskResponse struct {
	Path        string  `json:"path"`
	FreeBytes   uint64  `json:"free_bytes"`
	Free        string  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

type DaysResponse struct {
	Days []*catalog.Day `json:"days"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
