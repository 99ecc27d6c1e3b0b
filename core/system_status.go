package core

import (
	"bufio"
	"context"
	"os"
	"strconv"
	"strings"
	"time"
)

// PingFunc checks a single dependency.
type PingFunc func(ctx context.Context) error

// SystemStatus is the /healthz payload.
type SystemStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
	Memory   struct {
		UsedBytes  uint64 `json:"used_bytes"`
		TotalBytes uint64 `json:"total_bytes"`
	} `json:"memory"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// Healthy reports whether the database is reachable. Redis only backs the
// catalog cache, so its loss degrades but does not fail the service.
func (s SystemStatus) Healthy() bool {
	return s.Database == "ok"
}

// CollectSystemStatus pings the given dependencies and aggregates the result.
// A nil ping is reported as "disabled".
func CollectSystemStatus(ctx context.Context, database, cache PingFunc, startedAt time.Time) SystemStatus {
	var st SystemStatus

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st.Database = pingState(ctx, database)
	st.Redis = pingState(ctx, cache)
	switch {
	case !st.Healthy():
		st.Status = "unavailable"
	case st.Redis != "ok" && st.Redis != "disabled":
		st.Status = "degraded"
	default:
		st.Status = "ok"
	}

	// Memory (best-effort from /proc/meminfo)
	used, total := readMemInfo()
	st.Memory.UsedBytes = used
	st.Memory.TotalBytes = total

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}
	return st
}

func pingState(ctx context.Context, ping PingFunc) string {
	if ping == nil {
		return "disabled"
	}
	if err := ping(ctx); err != nil {
		return "error"
	}
	return "ok"
}

// readMemInfo returns used and total bytes using /proc/meminfo.
// If unavailable, returns zeros.
func readMemInfo() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			memTotal = parseKiBLine(line)
		} else if strings.HasPrefix(line, "MemAvailable:") {
			memAvailable = parseKiBLine(line)
		}
	}
	if memTotal > 0 {
		total = memTotal
		if memAvailable <= memTotal {
			used = memTotal - memAvailable
		}
		// convert KiB -> bytes
		used *= 1024
		total *= 1024
	}
	return used, total
}

func parseKiBLine(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
