package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	log "github.com/sirupsen/logrus"
)

// Snapshot file format constants.
const (
	snapshotMagic      = "LCF1"
	snapshotVersionNum = 1
	snapshotHeaderSize = 10 // magic(4) + version(2) + count(4)
	stdinSourceID      = "-"
)

// Snapshot errors.
var (
	ErrSnapshotCorrupt = errors.New("cache snapshot corrupted")
	ErrSnapshotVersion = errors.New("cache snapshot version mismatch")
)

// StatFunc returns file info for a source identifier.
type StatFunc func(sourceID string) (os.FileInfo, error)

// SnapshotEntry is one persisted frame with the source file state it was read from.
type SnapshotEntry struct {
	SourceID string
	ModTime  int64 // unix nanoseconds
	FileSize int64
	Payload  []byte
}

// SaveSnapshot writes every cached frame that came from a regular file to path.
// The write is atomic and holds an exclusive lock on path+".lock".
// Returns the number of entries written.
func SaveSnapshot(path string, c *FrameCache, stat StatFunc) (int, error) {
	var entries []SnapshotEntry
	for _, f := range c.Entries() {
		if f.SourceID == stdinSourceID {
			continue
		}
		info, err := stat(f.SourceID)
		if err != nil || !info.Mode().IsRegular() {
			log.Debugf("[Snapshot] skipping %q: not a regular file", f.SourceID)
			continue
		}
		entries = append(entries, SnapshotEntry{
			SourceID: f.SourceID,
			ModTime:  info.ModTime().UnixNano(),
			FileSize: info.Size(),
			Payload:  f.Payload,
		})
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return 0, fmt.Errorf("lock snapshot: %w", err)
	}
	defer lock.Unlock()

	if err := atomic.WriteFile(path, bytes.NewReader(encodeSnapshot(entries))); err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}

	log.Debugf("[Snapshot] saved %d frames to %s", len(entries), path)
	return len(entries), nil
}

// LoadSnapshot inserts frames from the snapshot at path into c.
// Entries whose payload is not frameSize bytes, or whose source file changed
// since the snapshot was written, are skipped.
// A missing snapshot file is not an error. Returns the number of frames restored.
func LoadSnapshot(path string, c *FrameCache, frameSize int, stat StatFunc) (int, error) {
	lock := flock.New(path + ".lock")
	if err := lock.RLock(); err != nil {
		return 0, fmt.Errorf("lock snapshot: %w", err)
	}
	data, err := os.ReadFile(path)
	lock.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read snapshot: %w", err)
	}

	entries, err := decodeSnapshot(data)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, e := range entries {
		if len(e.Payload) != frameSize {
			log.Debugf("[Snapshot] skipping %q: frame size %d, want %d", e.SourceID, len(e.Payload), frameSize)
			continue
		}
		info, err := stat(e.SourceID)
		if err != nil || info.ModTime().UnixNano() != e.ModTime || info.Size() != e.FileSize {
			log.Debugf("[Snapshot] skipping %q: source changed", e.SourceID)
			continue
		}
		if err := c.Insert(e.SourceID, e.Payload); err != nil {
			return restored, err
		}
		restored++
	}

	log.Debugf("[Snapshot] restored %d of %d frames from %s", restored, len(entries), path)
	return restored, nil
}

func encodeSnapshot(entries []SnapshotEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(snapshotVersionNum))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))

	for _, e := range entries {
		_ = binary.Write(&buf, binary.LittleEndian, uint16(len(e.SourceID)))
		buf.WriteString(e.SourceID)
		_ = binary.Write(&buf, binary.LittleEndian, e.ModTime)
		_ = binary.Write(&buf, binary.LittleEndian, e.FileSize)
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(e.Payload)))
		buf.Write(e.Payload)
	}
	return buf.Bytes()
}

func decodeSnapshot(data []byte) ([]SnapshotEntry, error) {
	if len(data) < snapshotHeaderSize || string(data[:4]) != snapshotMagic {
		return nil, ErrSnapshotCorrupt
	}
	if binary.LittleEndian.Uint16(data[4:6]) != snapshotVersionNum {
		return nil, ErrSnapshotVersion
	}
	count := binary.LittleEndian.Uint32(data[6:10])

	r := bytes.NewReader(data[snapshotHeaderSize:])
	entries := make([]SnapshotEntry, 0, min(int(count), 1024))
	for i := uint32(0); i < count; i++ {
		var idLen uint16
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return nil, ErrSnapshotCorrupt
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, ErrSnapshotCorrupt
		}

		e := SnapshotEntry{SourceID: string(id)}
		var payloadLen uint32
		if err := binary.Read(r, binary.LittleEndian, &e.ModTime); err != nil {
			return nil, ErrSnapshotCorrupt
		}
		if err := binary.Read(r, binary.LittleEndian, &e.FileSize); err != nil {
			return nil, ErrSnapshotCorrupt
		}
		if err := binary.Read(r, binary.LittleEndian, &payloadLen); err != nil {
			return nil, ErrSnapshotCorrupt
		}
		if int64(payloadLen) > int64(r.Len()) {
			return nil, ErrSnapshotCorrupt
		}
		e.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, e.Payload); err != nil {
			return nil, ErrSnapshotCorrupt
		}
		entries = append(entries, e)
	}

	if r.Len() != 0 {
		return nil, ErrSnapshotCorrupt
	}
	return entries, nil
}
