// Package preflight verifies the environment before a batch run starts.
package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Result reports one preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// CheckOutputDir verifies the output directory exists (creating it if
// needed) and is writable.
func CheckOutputDir(path string) Result {
	const name = "Output directory"
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least
// minFreeMiB mebibytes available. A zero minimum disables the check.
func CheckFreeSpace(path string, minFreeMiB int) Result {
	const name = "Free disk space"
	if minFreeMiB <= 0 {
		return Result{Name: name, Passed: true, Detail: "check disabled"}
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	freeMiB := stat.Bavail * uint64(stat.Bsize) / (1 << 20)
	if freeMiB < uint64(minFreeMiB) {
		return Result{Name: name, Detail: fmt.Sprintf("%d MiB free, need %d MiB", freeMiB, minFreeMiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d MiB free", freeMiB)}
}

// Run executes every check for a run writing to outputDir and returns the
// results plus whether they all passed.
func Run(outputDir string, minFreeMiB int) ([]Result, bool) {
	results := []Result{
		CheckOutputDir(outputDir),
	}
	if results[0].Passed {
		results = append(results, CheckFreeSpace(outputDir, minFreeMiB))
	}
	ok := true
	for _, result := range results {
		if !result.Passed {
			ok = false
		}
	}
	return results, ok
}
