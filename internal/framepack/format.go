package framepack

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

// Extension is the file suffix of frame archives.
const Extension = ".fpk"

const (
	maxFrames    = 1 << 20
	maxNameLen   = 4096
	maxFrameSize = 1 << 30
)

var magic = [4]byte{'F', 'P', 'K', '1'}

// ErrCorrupt reports an archive that does not follow the layout.
var ErrCorrupt = errors.New("corrupt frame archive")

// Frame is one encoded frame file stored in an archive.
type Frame struct {
	Name string
	Data []byte
}

// Writer streams frames into an archive. The frame count is fixed up front.
type Writer struct {
	enc     *zstd.Encoder
	want    int
	written int
	scratch [binary.MaxVarintLen64]byte
}

// NewWriter writes the archive header to w and returns a Writer expecting
// frameCount frames.
func NewWriter(w io.Writer, frameCount int, level zstd.EncoderLevel) (*Writer, error) {
	if frameCount <= 0 || frameCount > maxFrames {
		return nil, fmt.Errorf("frame count %d out of range", frameCount)
	}
	if _, err := w.Write(magic[:]); err != nil {
		return nil, fmt.Errorf("write magic: %w", err)
	}
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	fw := &Writer{enc: enc, want: frameCount}
	if err := fw.uvarint(uint64(frameCount)); err != nil {
		_ = enc.Close()
		return nil, err
	}
	return fw, nil
}

// Add appends one frame.
func (w *Writer) Add(name string, data []byte) error {
	if w.written >= w.want {
		return fmt.Errorf("archive already holds %d frames", w.want)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("frame name too long: %d bytes", len(name))
	}
	if len(data) > maxFrameSize {
		return fmt.Errorf("frame %s too large: %d bytes", name, len(data))
	}
	if err := w.uvarint(uint64(len(name))); err != nil {
		return err
	}
	if _, err := io.WriteString(w.enc, name); err != nil {
		return err
	}
	if err := w.uvarint(uint64(len(data))); err != nil {
		return err
	}
	if _, err := w.enc.Write(data); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(w.scratch[:8], xxhash.Sum64(data))
	if _, err := w.enc.Write(w.scratch[:8]); err != nil {
		return err
	}
	w.written++
	return nil
}

// Close flushes the zstd stream. It fails if fewer frames than announced
// were added.
func (w *Writer) Close() error {
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("close zstd stream: %w", err)
	}
	if w.written != w.want {
		return fmt.Errorf("archive announced %d frames, wrote %d", w.want, w.written)
	}
	return nil
}

func (w *Writer) uvarint(v uint64) error {
	n := binary.PutUvarint(w.scratch[:], v)
	_, err := w.enc.Write(w.scratch[:n])
	return err
}

// Read decodes every frame of the archive in r.
func Read(r io.Reader) ([]Frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: read magic: %v", ErrCorrupt, err)
	}
	if header != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrCorrupt, header[:])
	}
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	count, err := readLength(br, maxFrames, "frame count")
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, count)
	var sum [8]byte
	for i := 0; i < count; i++ {
		nameLen, err := readLength(br, maxNameLen, "name length")
		if err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, fmt.Errorf("%w: frame %d name: %v", ErrCorrupt, i, err)
		}
		dataLen, err := readLength(br, maxFrameSize, "data length")
		if err != nil {
			return nil, err
		}
		data := make([]byte, dataLen)
		if _, err := io.ReadFull(br, data); err != nil {
			return nil, fmt.Errorf("%w: frame %d data: %v", ErrCorrupt, i, err)
		}
		if _, err := io.ReadFull(br, sum[:]); err != nil {
			return nil, fmt.Errorf("%w: frame %d checksum: %v", ErrCorrupt, i, err)
		}
		if binary.LittleEndian.Uint64(sum[:]) != xxhash.Sum64(data) {
			return nil, fmt.Errorf("%w: frame %s checksum mismatch", ErrCorrupt, name)
		}
		frames = append(frames, Frame{Name: string(name), Data: data})
	}
	return frames, nil
}

// ReadFile decodes the archive at path.
func ReadFile(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	frames, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}
	return frames, nil
}

func readLength(r io.ByteReader, limit int, what string) (int, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrCorrupt, what, err)
	}
	if v > uint64(limit) {
		return 0, fmt.Errorf("%w: %s %d exceeds %d", ErrCorrupt, what, v, limit)
	}
	return int(v), nil
}
