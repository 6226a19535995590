package ingestor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
)

// MinFreeBytesDefault is the default free-space floor cmd/ingestor
// checks once at startup, before the gateway accepts any session.
const MinFreeBytesDefault = 512 * 1024 * 1024

// CheckDiskSpace returns an error if the filesystem backing path has
// less than minFreeBytes available, grounded on shirou/gopsutil's disk
// package (wired per SPEC_FULL.md DOMAIN STACK) in place of a hand-rolled
// statfs wrapper. This guards the ingestor Init-time failure mode of
// opening output files onto an already-full volume (spec.md §7 Init).
func CheckDiskSpace(path string, minFreeBytes uint64) error {
	usage, err := disk.Usage(path)
	if err != nil {
		return fmt.Errorf("ingestor: disk usage for %s: %w", path, err)
	}
	if usage.Free < minFreeBytes {
		return fmt.Errorf("ingestor: insufficient disk space at %s: %d bytes free, need %d", path, usage.Free, minFreeBytes)
	}
	return nil
}

// DirSize sums the size of every regular file under path, used by the
// status report to show how much a session has written so far. A
// missing directory (a session that never opened any output files)
// reports zero rather than an error.
func DirSize(path string) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += uint64(info.Size())
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("ingestor: walk %s: %w", path, err)
	}
	return total, nil
}
