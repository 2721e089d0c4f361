//go:build !windows

package diskspace

import "golang.org/x/sys/unix"

func availableBytes(dir string) int64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		// Network and virtual filesystems may refuse statfs.
		return 0
	}
	// Bavail = blocks available to non-root users
	return int64(stat.Bavail) * int64(stat.Bsize)
}
