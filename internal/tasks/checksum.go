package tasks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"chute/internal/textutil"
)

// checksumTask hashes each input with SHA-256 and writes a
// <output_dir>/<name>.sha256 companion file in the usual
// "<digest>  <name>" format.
type checksumTask struct {
	outDir string
}

func (t *checksumTask) Name() string { return "checksum" }

func (t *checksumTask) Description() string { return "Write a SHA-256 digest for each file" }

func (t *checksumTask) Process(ctx context.Context, in Input) (Output, error) {
	src, info, err := openInput(in)
	if err != nil {
		return Output{}, err
	}
	defer src.Close()

	hasher := sha256.New()
	if _, err := copyChunks(ctx, hasher, src); err != nil {
		return Output{}, fmt.Errorf("hash %s: %w", in.Path, err)
	}
	digest := hex.EncodeToString(hasher.Sum(nil))

	base := filepath.Base(in.Path)
	name := textutil.SanitizeFileName(base) + ".sha256"
	dst, outPath, err := createOutput(t.outDir, name)
	if err != nil {
		return Output{}, err
	}
	_, err = fmt.Fprintf(dst, "%s  %s\n", digest, base)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(outPath)
		return Output{}, fmt.Errorf("write digest for %s: %w", in.Path, err)
	}

	return Output{
		OutputPath: outPath,
		BytesIn:    info.Size(),
		Digest:     digest,
	}, nil
}
