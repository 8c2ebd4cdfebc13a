package decoy

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"time"
)

// The decoy build artifact is a tar.gz of zero-filled segments. Zeros
// compress to almost nothing, so the transmitted size stays tiny while the
// advertised decompressed size looks like a real build. The hard cap bounds
// even a misconfigured expanded mode to 4 GiB decompressed.
const (
	archiveChunkSize = 1 << 20 // 1 MiB per segment
	safeChunks       = 64      // 64 MiB decompressed in safe mode
	expandedChunks   = 1024    // 1 GiB decompressed in expanded mode
	maxChunks        = 4096    // absolute ceiling, any configuration
)

// ArchiveConfig describes one decoy artifact.
type ArchiveConfig struct {
	Chunks    int
	ChunkSize int
}

// NewArchiveConfig resolves the artifact sizing. override only applies in
// expanded mode and is clamped to the ceiling.
func NewArchiveConfig(expanded bool, override int) ArchiveConfig {
	chunks := safeChunks
	if expanded {
		chunks = expandedChunks
		if override > 0 {
			chunks = override
		}
		if chunks > maxChunks {
			chunks = maxChunks
		}
	}
	return ArchiveConfig{Chunks: chunks, ChunkSize: archiveChunkSize}
}

// TotalBytes is the decompressed payload size, used for status metadata.
func (c ArchiveConfig) TotalBytes() int64 {
	return int64(c.Chunks) * int64(c.ChunkSize)
}

const archiveNotice = `SYNTHETIC BUILD ARTIFACT
========================

This archive was generated as a safety artifact. Its contents are
zero-filled placeholder segments and carry no executable code or data.

If you are reading this inside a downloaded build, the download you
requested was served by an artifact mirror, not the primary build store.
Contact the infrastructure team if you believe this is an error.
`

// WriteArchive streams the artifact for jobID to w. It never buffers the
// expanded content; one chunk buffer is reused for every segment. A write
// error (typically the caller hanging up) aborts quietly, and ctx
// cancellation is honored between segments.
func WriteArchive(ctx context.Context, w io.Writer, jobID string, cfg ArchiveConfig) error {
	gz := gzip.NewWriter(w)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	now := time.Now()
	notice := fmt.Sprintf("%s\nJob: %s\nGenerated: %s\n", archiveNotice, jobID, now.Format(time.RFC3339))
	if err := tw.WriteHeader(&tar.Header{
		Name:    "README_FIRST.txt",
		Mode:    0o644,
		Size:    int64(len(notice)),
		ModTime: now,
	}); err != nil {
		return err
	}
	if _, err := tw.Write([]byte(notice)); err != nil {
		return err
	}

	chunk := make([]byte, cfg.ChunkSize)
	for i := 0; i < cfg.Chunks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		header := &tar.Header{
			Name:    fmt.Sprintf("build/segments/segment_%04d.bin", i),
			Mode:    0o644,
			Size:    int64(cfg.ChunkSize),
			ModTime: now,
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if _, err := tw.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}
