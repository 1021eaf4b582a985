package gguf

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile maps f's current contents read-write and shared, mirroring
// gguf_remap's PROT_READ|PROT_WRITE / MAP_SHARED mapping.
func mmapFile(f *os.File) ([]byte, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return nil, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func munmapFile(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}

// remap unmaps the current view (if any) and re-maps the file at its
// current size. Every writer mutation that grows the file must call this
// before handing out further borrows into the mapping.
func (f *File) remap() error {
	if err := munmapFile(f.data); err != nil {
		return &Error{Kind: ErrIO}
	}
	f.data = nil
	data, err := mmapFile(f.f)
	if err != nil {
		return &Error{Kind: ErrIO}
	}
	f.data = data
	return nil
}
