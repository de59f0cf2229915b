package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trailhq/trailstore/pkg/logging"
	"github.com/trailhq/trailstore/pkg/obs"
)

// DiskMonitor tracks on-disk usage of the data directory with caching
// to avoid repeated filesystem walks.
type DiskMonitor struct {
	dataDir       string
	maxBytes      int64
	cachedUsage   int64
	lastCheck     time.Time
	cacheDuration time.Duration
	mu            sync.RWMutex
	log           zerolog.Logger
}

// NewDiskMonitor creates a monitor over dataDir. maxBytes of zero
// disables the limit warning.
func NewDiskMonitor(dataDir string, maxBytes int64) *DiskMonitor {
	return &DiskMonitor{
		dataDir:       dataDir,
		maxBytes:      maxBytes,
		cacheDuration: 10 * time.Second,
		log:           logging.WithComponent("disk-monitor"),
	}
}

// Usage returns current disk usage in bytes, cached briefly.
func (m *DiskMonitor) Usage() (int64, error) {
	m.mu.RLock()
	if time.Since(m.lastCheck) < m.cacheDuration {
		usage := m.cachedUsage
		m.mu.RUnlock()
		return usage, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if time.Since(m.lastCheck) < m.cacheDuration {
		return m.cachedUsage, nil
	}

	usage, err := dirSize(m.dataDir)
	if err != nil {
		return 0, err
	}

	m.cachedUsage = usage
	m.lastCheck = time.Now()
	return usage, nil
}

// Limit returns the configured byte limit, zero when unlimited.
func (m *DiskMonitor) Limit() int64 {
	return m.maxBytes
}

// Check refreshes usage, publishes the gauge, and warns when the data
// directory exceeds the configured limit.
func (m *DiskMonitor) Check(ctx context.Context) error {
	usage, err := m.Usage()
	if err != nil {
		return err
	}

	obs.StorageBytesUsed.Set(float64(usage))

	if m.maxBytes > 0 && usage > m.maxBytes {
		m.log.Warn().
			Int64("used_bytes", usage).
			Int64("max_bytes", m.maxBytes).
			Msg("data directory exceeds configured storage limit")
	}
	return nil
}

// DiskUsageJob wraps the monitor check as a scheduled job.
func DiskUsageJob(m *DiskMonitor) Job {
	return Job{
		Name:       "disk-usage",
		Interval:   1 * time.Minute,
		Run:        m.Check,
		RunOnStart: true,
	}
}

// dirSize walks the directory tree summing actual disk usage, which
// handles sparse files correctly on platforms that report blocks.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += actualFileSize(info)
		}
		return nil
	})
	return size, err
}
