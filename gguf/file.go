package gguf

import (
	"encoding/binary"
	"log/slog"
	"os"
)

const headerSize = 24

const defaultAlignment = 32

var magic = [4]byte{'G', 'G', 'U', 'F'}

// validAlignment reports whether v is usable as a tensor-payload
// alignment: nonzero and a power of two, so offset%align and
// padding-to-align arithmetic can never divide by zero.
func validAlignment(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// Header is the fixed 24-byte GGUF file header.
type Header struct {
	Magic           [4]byte
	Version         uint32
	TensorCount     uint64
	MetadataKVCount uint64
}

// File is a memory-mapped GGUF container, open for either reading or
// append-only writing. It is not safe for concurrent use by multiple
// goroutines when any method that may re-map the file is in play.
type File struct {
	f    *os.File
	path string
	data []byte

	header Header

	cursor      int64
	leftKV      uint64
	leftTensors uint64
	alignment   uint64
	dataOffset  uint64

	log *slog.Logger
}

// Open maps path read-write and validates the header. Versions 1 and 2
// are historical and rejected.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, &Error{Kind: ErrIO}
	}

	gf := &File{f: f, path: path, log: slog.Default().With("file", path)}

	data, err := mmapFile(f)
	if err != nil {
		f.Close()
		return nil, &Error{Kind: ErrIO}
	}
	gf.data = data

	if err := gf.validateHeader(); err != nil {
		gf.Close()
		return nil, err
	}

	if err := gf.Rewind(); err != nil {
		gf.Close()
		return nil, err
	}
	return gf, nil
}

func (f *File) validateHeader() error {
	if len(f.data) < headerSize {
		return newError(ErrTruncated, int64(len(f.data)))
	}
	var m [4]byte
	copy(m[:], f.data[0:4])
	if m != magic {
		return newError(ErrBadMagic, 0)
	}
	version := binary.LittleEndian.Uint32(f.data[4:8])
	if version < 3 {
		return newError(ErrUnsupportedType, 4)
	}
	f.header = Header{
		Magic:           m,
		Version:         version,
		TensorCount:     binary.LittleEndian.Uint64(f.data[8:16]),
		MetadataKVCount: binary.LittleEndian.Uint64(f.data[16:24]),
	}
	return nil
}

// Header returns the last-parsed header. Call Rewind after a write to
// refresh it from the grown file.
func (f *File) Header() Header { return f.header }

// Alignment returns the current tensor-payload alignment: 32 unless a
// general.alignment (or the tolerated typo general.alignmnet) entry has
// overridden it.
func (f *File) Alignment() uint64 { return f.alignment }

// Rewind resets the cursor to just past the header and re-seeds the
// key-value and tensor counters from the (possibly grown) header, as
// after a write.
func (f *File) Rewind() error {
	if err := f.validateHeader(); err != nil {
		return err
	}
	f.cursor = headerSize
	f.leftKV = f.header.MetadataKVCount
	f.leftTensors = f.header.TensorCount
	f.alignment = defaultAlignment
	f.dataOffset = 0
	return nil
}

// Close unmaps the file and closes the descriptor.
func (f *File) Close() error {
	if err := munmapFile(f.data); err != nil {
		f.f.Close()
		return &Error{Kind: ErrIO}
	}
	return f.f.Close()
}
