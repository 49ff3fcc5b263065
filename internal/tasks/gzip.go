package tasks

import (
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"chute/internal/textutil"
)

// gzipTask compresses each input into <output_dir>/<name>.gz.
type gzipTask struct {
	outDir string
}

func (t *gzipTask) Name() string { return "gzip" }

func (t *gzipTask) Description() string { return "Compress each file with gzip" }

func (t *gzipTask) Process(ctx context.Context, in Input) (Output, error) {
	src, info, err := openInput(in)
	if err != nil {
		return Output{}, err
	}
	defer src.Close()

	name := textutil.SanitizeFileName(filepath.Base(in.Path)) + ".gz"
	dst, outPath, err := createOutput(t.outDir, name)
	if err != nil {
		return Output{}, err
	}

	zw := gzip.NewWriter(dst)
	zw.Name = filepath.Base(in.Path)
	_, err = copyChunks(ctx, zw, src)
	if err == nil {
		err = zw.Close()
	} else {
		_ = zw.Close()
	}
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(outPath)
		return Output{}, fmt.Errorf("compress %s: %w", in.Path, err)
	}

	outInfo, err := os.Stat(outPath)
	if err != nil {
		return Output{}, fmt.Errorf("stat output: %w", err)
	}
	return Output{
		OutputPath: outPath,
		BytesIn:    info.Size(),
		BytesOut:   outInfo.Size(),
	}, nil
}
