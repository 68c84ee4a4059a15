package archive

import "encoding/json"

// ManifestEntry locates one collection's section within the archive's
// decompressed frame stream. The loader does not seek by these entries:
// it decompresses the whole stream and decodes every section in order.
type ManifestEntry struct {
	Name   string `json:"name"`
	Offset int64  `json:"offset"` // byte offset of the section frame within the decompressed frame stream
	Length int64  `json:"length"` // byte length of the section frame (9-byte frame header + uncompressed payload)
}

// Manifest is the archive's table of contents, written last so that a
// torn write is detectable by checksum mismatch (spec.md §4.5).
type Manifest struct {
	Generation  uint64          `json:"generation"`
	Collections []ManifestEntry `json:"collections"`
}

func encodeManifest(m Manifest) ([]byte, error) {
	return json.Marshal(m)
}

func decodeManifest(b []byte) (Manifest, error) {
	var m Manifest
	err := json.Unmarshal(b, &m)
	return m, err
}

// SnapshotEntry describes one retained snapshot generation.
type SnapshotEntry struct {
	Generation    uint64 `json:"generation"`
	CreatedUnixMs int64  `json:"created_unix_ms"`
	Path          string `json:"path"`
}

// SnapshotsIndex is the snapshots_index section payload: the set of
// snapshot generations the store believes are retained on disk as of
// this commit.
type SnapshotsIndex struct {
	Snapshots []SnapshotEntry `json:"snapshots"`
}

func encodeSnapshotsIndex(s SnapshotsIndex) ([]byte, error) {
	return json.Marshal(s)
}

func decodeSnapshotsIndex(b []byte) (SnapshotsIndex, error) {
	var s SnapshotsIndex
	err := json.Unmarshal(b, &s)
	return s, err
}
