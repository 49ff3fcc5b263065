package tasks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Input is the payload for one file.
type Input struct {
	Path string
	Size int64
}

// Output describes what a task produced for one file.
type Output struct {
	OutputPath string
	BytesIn    int64
	BytesOut   int64
	Digest     string
}

// Task transforms one file into an output artifact.
type Task interface {
	Name() string
	Description() string
	Process(ctx context.Context, in Input) (Output, error)
}

type factory func(outDir string) Task

var registry = map[string]factory{
	"gzip":     func(outDir string) Task { return &gzipTask{outDir: outDir} },
	"checksum": func(outDir string) Task { return &checksumTask{outDir: outDir} },
	"copy":     func(outDir string) Task { return &copyTask{outDir: outDir} },
}

// Names returns the registered task names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the named task writing into outDir.
func New(name, outDir string) (Task, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown task %q (available: %v)", name, Names())
	}
	return build(outDir), nil
}

const copyChunkSize = 64 * 1024

// copyChunks copies src to dst in bounded chunks, checking ctx between
// chunks so a cancelled run stops mid-file.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
			if wn < n {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func openInput(in Input) (*os.File, os.FileInfo, error) {
	file, err := os.Open(in.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("stat input: %w", err)
	}
	return file, info, nil
}

// createOutput creates the destination file, ensuring the directory exists.
func createOutput(outDir, name string) (*os.File, string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("ensure output directory: %w", err)
	}
	path := filepath.Join(outDir, name)
	file, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("create output: %w", err)
	}
	return file, path, nil
}
