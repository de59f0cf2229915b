//go:build windows

package maintenance

import "os"

// actualFileSize returns the logical size. Windows does not expose
// block-level allocation via os.FileInfo, so sparse files may be
// overreported.
func actualFileSize(info os.FileInfo) int64 {
	return info.Size()
}
