package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file with the given contents under dir and returns
// its path.
func WriteFile(t testing.TB, dir, name string, contents []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ScratchFiles creates n small distinct files in a fresh temp dir and
// returns their paths.
func ScratchFiles(t testing.TB, n int) []string {
	t.Helper()

	dir := t.TempDir()
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, fmt.Sprintf("input-%02d.txt", i))
		contents := []byte("scratch contents " + name + "\n")
		if err := os.WriteFile(name, contents, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		paths = append(paths, name)
	}
	return paths
}
