package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"chute/internal/textutil"
)

// copyTask copies each input into the output directory unchanged. Useful
// for staging a batch into one place and as the simplest cancellation-aware
// processor.
type copyTask struct {
	outDir string
}

func (t *copyTask) Name() string { return "copy" }

func (t *copyTask) Description() string { return "Copy each file into the output directory" }

func (t *copyTask) Process(ctx context.Context, in Input) (Output, error) {
	src, info, err := openInput(in)
	if err != nil {
		return Output{}, err
	}
	defer src.Close()

	name := textutil.SanitizeFileName(filepath.Base(in.Path))
	dst, outPath, err := createOutput(t.outDir, name)
	if err != nil {
		return Output{}, err
	}

	written, err := copyChunks(ctx, dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(outPath)
		return Output{}, fmt.Errorf("copy %s: %w", in.Path, err)
	}

	return Output{
		OutputPath: outPath,
		BytesIn:    info.Size(),
		BytesOut:   written,
	}, nil
}
