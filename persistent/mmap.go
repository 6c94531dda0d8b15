package persistent

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/outofforest/lexicode/types"
)

// NewMmapStore creates new store backed by the memory-mapped file.
func NewMmapStore(file *os.File) (*MmapStore, error) {
	return newMmapStore(file, false)
}

func newMmapStore(file *os.File, readOnly bool) (*MmapStore, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s := &MmapStore{
		file:     file,
		size:     uint64(info.Size()),
		readOnly: readOnly,
	}
	if readOnly {
		err = s.mapReadOnly()
	} else {
		err = s.remap(s.size)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenMmapStore opens or creates the file and returns the store mapping it.
func OpenMmapStore(path string) (*MmapStore, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s, err := NewMmapStore(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return s, nil
}

// OpenMmapStoreReadOnly maps existing file for reading. The file is never modified.
func OpenMmapStoreReadOnly(path string) (*MmapStore, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s, err := newMmapStore(file, true)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return s, nil
}

// MmapStore defines persistent store mapping the file into memory. Mapping grows in multiples of the system page
// size and the file is truncated to the real size on close.
type MmapStore struct {
	file     *os.File
	data     []byte
	size     uint64
	readOnly bool
}

// Size returns size of the store.
func (s *MmapStore) Size() uint64 {
	return s.size
}

// Read reads data from the store.
func (s *MmapStore) Read(offset, length uint64) ([]byte, error) {
	if err := checkRange(offset, length, s.size); err != nil {
		return nil, err
	}
	return append([]byte(nil), s.data[offset:offset+length]...), nil
}

// Write writes data to the store.
func (s *MmapStore) Write(offset uint64, data []byte) error {
	if s.readOnly {
		return errors.WithStack(types.ErrReadOnly)
	}
	end := offset + uint64(len(data))
	if end > uint64(len(s.data)) {
		if err := s.remap(max(end, 2*uint64(len(s.data)))); err != nil {
			return err
		}
	}
	copy(s.data[offset:], data)
	if end > s.size {
		s.size = end
	}
	return nil
}

// Sync syncs pending writes.
func (s *MmapStore) Sync() error {
	if s.readOnly {
		return nil
	}
	if len(s.data) > 0 {
		if err := unix.Msync(s.data, unix.MS_SYNC); err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(s.file.Sync())
}

// Close syncs, unmaps and closes the file.
func (s *MmapStore) Close() error {
	if err := s.Sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	if err := s.unmap(); err != nil {
		_ = s.file.Close()
		return err
	}
	if s.readOnly {
		return errors.WithStack(s.file.Close())
	}
	if err := s.file.Truncate(int64(s.size)); err != nil {
		_ = s.file.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(s.file.Close())
}

func (s *MmapStore) remap(size uint64) error {
	pageSize := uint64(os.Getpagesize())
	size = (size + pageSize - 1) / pageSize * pageSize
	if size == 0 {
		size = pageSize
	}

	if err := s.unmap(); err != nil {
		return err
	}
	if err := s.file.Truncate(int64(size)); err != nil {
		return errors.WithStack(err)
	}
	data, err := unix.Mmap(int(s.file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return errors.Wrapf(err, "memory mapping failed")
	}
	s.data = data
	return nil
}

func (s *MmapStore) mapReadOnly() error {
	if s.size == 0 {
		return nil
	}
	data, err := unix.Mmap(int(s.file.Fd()), 0, int(s.size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return errors.Wrapf(err, "memory mapping failed")
	}
	s.data = data
	return nil
}

func (s *MmapStore) unmap() error {
	if s.data == nil {
		return nil
	}
	if err := unix.Munmap(s.data); err != nil {
		return errors.WithStack(err)
	}
	s.data = nil
	return nil
}
