package archive

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/vecdbhq/vecdb/internal/collection"
	"github.com/vecdbhq/vecdb/internal/vecerrors"
)

// MaxOpenGenerations caps how many archive generations the store will
// keep memory-resident handles for at once (spec.md §5 resource caps).
const MaxOpenGenerations = 3

// DefaultMaxSnapshots and DefaultRetentionAge are the out-of-the-box
// snapshot rotation caps when the caller doesn't override them.
const (
	DefaultMaxSnapshots = 3
	DefaultRetentionAge = 7 * 24 * time.Hour
)

// Archive is the fully decoded contents of one .vecdb file: every
// collection's snapshot, keyed by name, plus the manifest and snapshot
// index sections that accompanied it.
type Archive struct {
	Generation     uint64
	Collections    map[string]collection.Snapshot
	SnapshotsIndex SnapshotsIndex
}

// Store manages one data directory's live .vecdb file and its
// snapshots/ subdirectory of retained prior generations.
type Store struct {
	dataDir      string
	livePath     string
	snapshotsDir string

	maxSnapshots int
	retentionAge time.Duration
}

// NewStore creates a Store rooted at dataDir. dataDir is created if it
// does not already exist.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, vecerrors.IoError("failed to create data directory", err)
	}
	snapshotsDir := filepath.Join(dataDir, "snapshots")
	if err := os.MkdirAll(snapshotsDir, 0o755); err != nil {
		return nil, vecerrors.IoError("failed to create snapshots directory", err)
	}
	return &Store{
		dataDir:      dataDir,
		livePath:     filepath.Join(dataDir, "live.vecdb"),
		snapshotsDir: snapshotsDir,
		maxSnapshots: DefaultMaxSnapshots,
		retentionAge: DefaultRetentionAge,
	}, nil
}

// WithRetention overrides the snapshot rotation caps (storage.snapshots.*
// configuration). Either bound may be zero to mean "unbounded".
func (s *Store) WithRetention(maxSnapshots int, retentionAge time.Duration) {
	s.maxSnapshots = maxSnapshots
	s.retentionAge = retentionAge
}

// Load reads the live archive file. If it is missing, Load returns a
// zero-generation empty Archive rather than an error (a fresh data
// directory has no history yet). If the live file fails checksum
// validation, Load falls back to the newest valid snapshot; if none
// validate, it returns an empty Archive and logs a fatal operational
// event rather than failing the process (spec.md §8 propagation policy).
func (s *Store) Load() (Archive, error) {
	archive, err := loadFile(s.livePath)
	if err == nil {
		return archive, nil
	}
	if os.IsNotExist(err) {
		return Archive{Collections: map[string]collection.Snapshot{}}, nil
	}

	slog.Warn("live archive failed validation, falling back to snapshots",
		slog.String("path", s.livePath),
		slog.String("error", err.Error()))

	candidates, listErr := s.listSnapshots()
	if listErr != nil {
		return Archive{}, vecerrors.ArchiveCorrupt(s.livePath, err)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Generation > candidates[j].Generation })

	for _, c := range candidates {
		archive, err := loadFile(c.Path)
		if err == nil {
			slog.Warn("recovered from snapshot",
				slog.String("path", c.Path),
				slog.Uint64("generation", archive.Generation))
			return archive, nil
		}
	}

	slog.Error("no valid archive generation found; opening empty store",
		slog.String("data_dir", s.dataDir))
	return Archive{Collections: map[string]collection.Snapshot{}}, nil
}

func loadFile(path string) (Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return Archive{}, err
	}
	defer f.Close()

	header, err := DecodeHeader(f)
	if err != nil {
		return Archive{}, err
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		return Archive{}, vecerrors.ArchiveCorrupt(path, err)
	}
	defer dec.Close()

	collections := make(map[string]collection.Snapshot)
	var manifest Manifest
	var snapshotsIdx SnapshotsIndex
	var sawManifest bool
	var offset uint64

	for {
		frame, err := readSectionFrame(dec)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Archive{}, vecerrors.ArchiveCorrupt(path, err)
		}
		frameLen := uint64(9 + len(frame.payload))

		switch frame.kind {
		case SectionManifest:
			if crc32Of(frame.payload) != header.ManifestCRC32 {
				return Archive{}, vecerrors.ArchiveCorrupt(path, fmt.Errorf("manifest checksum mismatch"))
			}
			if offset != header.ManifestOffset || frameLen != header.ManifestLen {
				return Archive{}, vecerrors.ArchiveCorrupt(path, fmt.Errorf("manifest offset/length mismatch"))
			}
			manifest, err = decodeManifest(frame.payload)
			if err != nil {
				return Archive{}, vecerrors.ArchiveCorrupt(path, err)
			}
			sawManifest = true
		case SectionCollection:
			snap, err := decodeCollectionSection(frame.payload)
			if err != nil {
				return Archive{}, vecerrors.ArchiveCorrupt(path, err)
			}
			collections[snap.Attrs.Name] = snap
		case SectionSnapshotsIndex:
			snapshotsIdx, err = decodeSnapshotsIndex(frame.payload)
			if err != nil {
				return Archive{}, vecerrors.ArchiveCorrupt(path, err)
			}
		default:
			return Archive{}, vecerrors.ArchiveCorrupt(path, fmt.Errorf("unknown section kind %d", frame.kind))
		}
		offset += frameLen
	}

	if !sawManifest {
		return Archive{}, vecerrors.ArchiveCorrupt(path, fmt.Errorf("archive has no manifest section"))
	}
	if manifest.Generation != header.Generation {
		return Archive{}, vecerrors.ArchiveCorrupt(path, fmt.Errorf("manifest generation %d does not match header generation %d", manifest.Generation, header.Generation))
	}
	for _, entry := range manifest.Collections {
		if _, ok := collections[entry.Name]; !ok {
			return Archive{}, vecerrors.ArchiveCorrupt(path, fmt.Errorf("manifest references missing collection %q", entry.Name))
		}
	}

	return Archive{Generation: header.Generation, Collections: collections, SnapshotsIndex: snapshotsIdx}, nil
}

// Commit writes a new generation containing exactly the given
// collections, via copy-on-write: the new archive is built in a
// temporary file, fsynced, and atomically renamed over the live path.
// The previous live file (if any) is rotated into snapshots/ before
// rotation caps are enforced.
func (s *Store) Commit(generation uint64, snapshots map[string]collection.Snapshot) error {
	tmpPath := s.livePath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return vecerrors.IoError("failed to create temp archive file", err)
	}

	now := time.Now()
	if _, err := f.Write(make([]byte, headerSize)); err != nil {
		f.Close()
		return vecerrors.IoError("failed to write archive header placeholder", err)
	}

	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return vecerrors.IoError("failed to create archive compressor", err)
	}

	var offset uint64
	manifest := Manifest{Generation: generation}

	names := make([]string, 0, len(snapshots))
	for name := range snapshots {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		snap := snapshots[name]
		payload, err := encodeCollectionSection(snap)
		if err != nil {
			enc.Close()
			f.Close()
			return fmt.Errorf("archive: encoding collection %q: %w", name, err)
		}
		entryOffset := int64(offset)
		n, err := writeSectionFrame(enc, SectionCollection, payload)
		if err != nil {
			enc.Close()
			f.Close()
			return vecerrors.IoError("failed to write collection section", err)
		}
		offset += uint64(n)
		manifest.Collections = append(manifest.Collections, ManifestEntry{
			Name:   name,
			Offset: entryOffset,
			Length: n,
		})
	}

	snapshotEntries, err := s.listSnapshots()
	if err != nil {
		enc.Close()
		f.Close()
		return err
	}
	snapIdx := SnapshotsIndex{}
	for _, e := range snapshotEntries {
		snapIdx.Snapshots = append(snapIdx.Snapshots, SnapshotEntry{
			Generation:    e.Generation,
			CreatedUnixMs: e.CreatedAt.UnixMilli(),
			Path:          e.Path,
		})
	}
	snapIdxBytes, err := encodeSnapshotsIndex(snapIdx)
	if err != nil {
		enc.Close()
		f.Close()
		return err
	}
	snapIdxLen, err := writeSectionFrame(enc, SectionSnapshotsIndex, snapIdxBytes)
	if err != nil {
		enc.Close()
		f.Close()
		return vecerrors.IoError("failed to write snapshots_index section", err)
	}
	offset += uint64(snapIdxLen)

	manifestOffset := offset
	manifestBytes, err := encodeManifest(manifest)
	if err != nil {
		enc.Close()
		f.Close()
		return err
	}
	manifestLen, err := writeSectionFrame(enc, SectionManifest, manifestBytes)
	if err != nil {
		enc.Close()
		f.Close()
		return vecerrors.IoError("failed to write manifest section", err)
	}

	if err := enc.Close(); err != nil {
		f.Close()
		return vecerrors.IoError("failed to flush archive compressor", err)
	}

	header := Header{
		FormatVersion:  CurrentFormatVersion,
		Generation:     generation,
		CreatedUnixMs:  now.UnixMilli(),
		ManifestOffset: manifestOffset,
		ManifestLen:    uint64(manifestLen),
		ManifestCRC32:  crc32Of(manifestBytes),
	}
	if _, err := f.WriteAt(header.Encode(), 0); err != nil {
		f.Close()
		return vecerrors.IoError("failed to write archive header", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return vecerrors.IoError("failed to fsync archive", err)
	}
	if err := f.Close(); err != nil {
		return vecerrors.IoError("failed to close archive", err)
	}

	if err := s.rotatePreviousGeneration(); err != nil {
		slog.Warn("failed to rotate previous archive generation", slog.String("error", err.Error()))
	}

	if err := os.Rename(tmpPath, s.livePath); err != nil {
		return vecerrors.IoError("failed to rename archive into place", err)
	}

	if err := s.enforceRetention(); err != nil {
		slog.Warn("snapshot retention enforcement failed", slog.String("error", err.Error()))
	}

	slog.Info("archive committed",
		slog.Uint64("generation", generation),
		slog.Int("collections", len(snapshots)))
	return nil
}

// rotatePreviousGeneration copies the current live file into snapshots/
// before it is overwritten by the new generation.
func (s *Store) rotatePreviousGeneration() error {
	f, err := os.Open(s.livePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	header, err := DecodeHeader(f)
	f.Close()
	if err != nil {
		return nil // previous generation already unreadable; nothing to rotate
	}

	// Named by generation, not creation timestamp: two commits can land in
	// the same millisecond, and the generation counter is guaranteed unique
	// and monotonic. The timestamp is still what callers identify a
	// snapshot by (RestoreSnapshot, `snapshot list`/`restore --id`); it is
	// read back out of each file's own header in listSnapshots.
	dest := filepath.Join(s.snapshotsDir, fmt.Sprintf("%020d.vecdb", header.Generation))
	data, err := os.ReadFile(s.livePath)
	if err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}

// SnapshotFile describes one retained archive generation on disk.
type SnapshotFile struct {
	Generation uint64
	CreatedAt  time.Time
	Path       string
}

func (s *Store) listSnapshots() ([]SnapshotFile, error) {
	entries, err := os.ReadDir(s.snapshotsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vecerrors.IoError("failed to list snapshots directory", err)
	}

	var out []SnapshotFile
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".vecdb" {
			continue
		}
		path := filepath.Join(s.snapshotsDir, e.Name())
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		header, err := DecodeHeader(f)
		f.Close()
		if err != nil {
			continue
		}
		out = append(out, SnapshotFile{
			Generation: header.Generation,
			CreatedAt:  time.UnixMilli(header.CreatedUnixMs).UTC(),
			Path:       path,
		})
	}
	return out, nil
}

// enforceRetention implements the "tightest wins" resolution of the
// retention Open Question: a snapshot is retained only while it is
// within both the max-count bound (the N most recent generations) and
// the max-age bound, whichever excludes it first.
func (s *Store) enforceRetention() error {
	snaps, err := s.listSnapshots()
	if err != nil {
		return err
	}
	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
		}
		return snaps[i].Generation > snaps[j].Generation
	})

	now := time.Now()
	for i, snap := range snaps {
		keep := true
		if s.maxSnapshots > 0 && i >= s.maxSnapshots {
			keep = false
		}
		if s.retentionAge > 0 && now.Sub(snap.CreatedAt) > s.retentionAge {
			keep = false
		}
		if !keep {
			if err := os.Remove(snap.Path); err != nil && !os.IsNotExist(err) {
				return vecerrors.IoError("failed to remove expired snapshot", err)
			}
		}
	}
	return nil
}

// Verify re-reads the live archive and reports whether it passes
// checksum and structural validation, without mutating anything.
func (s *Store) Verify() error {
	_, err := loadFile(s.livePath)
	return err
}

// Migrate re-writes the live archive at the current format version,
// rewriting every collection section. It is a no-op beyond a fresh
// commit today because CurrentFormatVersion has never changed, but it
// gives the CLI's `storage migrate` a stable entry point for when it
// does.
func (s *Store) Migrate() error {
	archive, err := s.Load()
	if err != nil {
		return err
	}
	return s.Commit(archive.Generation+1, archive.Collections)
}

// ListSnapshots returns the retained snapshots, newest (by creation
// timestamp) first.
func (s *Store) ListSnapshots() ([]SnapshotFile, error) {
	snaps, err := s.listSnapshots()
	if err != nil {
		return nil, err
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].CreatedAt.After(snaps[j].CreatedAt) })
	return snaps, nil
}

// RestoreSnapshot promotes the retained snapshot created at timestampMs
// (Unix milliseconds, the snapshot's identifying `--id`) back to the
// live file, copy-on-write.
func (s *Store) RestoreSnapshot(timestampMs int64) error {
	snaps, err := s.listSnapshots()
	if err != nil {
		return err
	}
	for _, snap := range snaps {
		if snap.CreatedAt.UnixMilli() != timestampMs {
			continue
		}
		data, err := os.ReadFile(snap.Path)
		if err != nil {
			return vecerrors.IoError("failed to read snapshot", err)
		}
		tmpPath := s.livePath + ".tmp"
		if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
			return vecerrors.IoError("failed to stage restored snapshot", err)
		}
		return os.Rename(tmpPath, s.livePath)
	}
	return vecerrors.New(vecerrors.CodeArchiveCorrupt, fmt.Sprintf("snapshot %d not found", timestampMs), nil)
}
