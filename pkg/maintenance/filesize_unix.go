//go:build !windows

package maintenance

import (
	"os"
	"syscall"
)

// actualFileSize returns disk usage in bytes. Unix reports allocated
// 512-byte blocks, which accounts for sparse files.
func actualFileSize(info os.FileInfo) int64 {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if ok {
		return stat.Blocks * 512
	}
	return info.Size()
}
