// Package archive implements C6: the .vecdb compact persistence format —
// a fixed-width header followed by a single Zstandard stream of framed
// sections — and the copy-on-write commit / snapshot-rotation discipline
// spec.md §4.5 and §6 describe.
package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"time"

	"github.com/vecdbhq/vecdb/internal/vecerrors"
)

// Magic is the fixed 6-byte archive signature.
var Magic = [6]byte{'V', 'E', 'C', 'D', 'B', 0}

// CurrentFormatVersion is the format_version this build writes. Loaders
// reject any file whose format_version exceeds this.
const CurrentFormatVersion uint16 = 1

// Section kinds, per spec.md §6.
const (
	SectionManifest       uint8 = 1
	SectionCollection     uint8 = 2
	SectionSnapshotsIndex uint8 = 3
)

// headerSize is the byte width of the fixed header:
// magic(6) + format_version(2) + generation(8) + created_unix_ms(8) +
// manifest_offset(8) + manifest_len(8) + manifest_crc32(4) = 44.
const headerSize = 6 + 2 + 8 + 8 + 8 + 8 + 4

// Header is the fixed-width prefix of every .vecdb file.
type Header struct {
	FormatVersion  uint16
	Generation     uint64
	CreatedUnixMs  int64
	ManifestOffset uint64
	ManifestLen    uint64
	ManifestCRC32  uint32
}

// Encode writes the header in the exact wire layout spec.md §6 defines.
func (h Header) Encode() []byte {
	buf := make([]byte, headerSize)
	copy(buf[0:6], Magic[:])
	binary.LittleEndian.PutUint16(buf[6:8], h.FormatVersion)
	binary.LittleEndian.PutUint64(buf[8:16], h.Generation)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.CreatedUnixMs))
	binary.LittleEndian.PutUint64(buf[24:32], h.ManifestOffset)
	binary.LittleEndian.PutUint64(buf[32:40], h.ManifestLen)
	binary.LittleEndian.PutUint32(buf[40:44], h.ManifestCRC32)
	return buf
}

// DecodeHeader parses the fixed header from the front of an archive file.
func DecodeHeader(r io.Reader) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, vecerrors.IoError("failed to read archive header", err)
	}
	if !bytes.Equal(buf[0:6], Magic[:]) {
		return Header{}, vecerrors.ArchiveCorrupt("", fmt.Errorf("bad magic %x", buf[0:6]))
	}
	h := Header{
		FormatVersion:  binary.LittleEndian.Uint16(buf[6:8]),
		Generation:     binary.LittleEndian.Uint64(buf[8:16]),
		CreatedUnixMs:  int64(binary.LittleEndian.Uint64(buf[16:24])),
		ManifestOffset: binary.LittleEndian.Uint64(buf[24:32]),
		ManifestLen:    binary.LittleEndian.Uint64(buf[32:40]),
		ManifestCRC32:  binary.LittleEndian.Uint32(buf[40:44]),
	}
	if h.FormatVersion > CurrentFormatVersion {
		return Header{}, vecerrors.ArchiveVersionUnsupported(h.FormatVersion, CurrentFormatVersion)
	}
	return h, nil
}

// sectionFrame is one {kind, len, bytes} frame written into the archive's
// single Zstandard stream. len covers the raw (pre-compression) payload.
type sectionFrame struct {
	kind    uint8
	payload []byte
}

func writeSectionFrame(w io.Writer, kind uint8, compressed []byte) (int64, error) {
	head := make([]byte, 9)
	head[0] = kind
	binary.LittleEndian.PutUint64(head[1:9], uint64(len(compressed)))
	n1, err := w.Write(head)
	if err != nil {
		return int64(n1), err
	}
	n2, err := w.Write(compressed)
	return int64(n1 + n2), err
}

func readSectionFrame(r io.Reader) (sectionFrame, error) {
	head := make([]byte, 9)
	if _, err := io.ReadFull(r, head); err != nil {
		return sectionFrame{}, err
	}
	kind := head[0]
	n := binary.LittleEndian.Uint64(head[1:9])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return sectionFrame{}, vecerrors.IoError("failed to read section frame", err)
	}
	return sectionFrame{kind: kind, payload: payload}, nil
}

func crc32Of(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

func mathFloat32bits(f float32) uint32     { return math.Float32bits(f) }
func mathFloat32frombits(b uint32) float32 { return math.Float32frombits(b) }

// msToTime converts a Unix-epoch millisecond timestamp back to a UTC time.Time.
func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
