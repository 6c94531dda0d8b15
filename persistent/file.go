package persistent

import (
	"io"
	"os"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"

	"github.com/outofforest/lexicode/types"
)

// FileConfig stores configuration of the file store.
type FileConfig struct {
	PageSize   uint64
	CachePages int
}

// DefaultFileConfig is the default configuration of the file store.
var DefaultFileConfig = FileConfig{
	PageSize:   4096,
	CachePages: 64,
}

// NewFileStore creates new file-based store caching pages of the file in memory.
func NewFileStore(file *os.File, config FileConfig) (*FileStore, error) {
	if config.PageSize == 0 || config.CachePages <= 0 {
		return nil, errors.Errorf("invalid page cache configuration: page size %d, cached pages %d",
			config.PageSize, config.CachePages)
	}

	info, err := file.Stat()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return &FileStore{
		config: config,
		file:   file,
		size:   uint64(info.Size()),
		pages:  map[uint64]*page{},
	}, nil
}

// OpenFileStoreReadOnly opens existing file for reading. The file is never modified.
func OpenFileStoreReadOnly(path string, config FileConfig) (*FileStore, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s, err := NewFileStore(file, config)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	s.readOnly = true
	return s, nil
}

// OpenFileStore opens or creates the file and returns the store backed by it.
func OpenFileStore(path string, config FileConfig) (*FileStore, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s, err := NewFileStore(file, config)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return s, nil
}

type page struct {
	index    uint64
	data     []byte
	checksum uint64
	lastUse  uint64
}

// FileStore defines persistent file-based store. Pages are loaded when accessed for the first time and flushed
// when evicted from cache or when store is synced. Pages not modified since loading are never written back.
type FileStore struct {
	config   FileConfig
	file     *os.File
	size     uint64
	pages    map[uint64]*page
	clock    uint64
	flushes  uint64
	readOnly bool
}

// Size returns size of the store.
func (s *FileStore) Size() uint64 {
	return s.size
}

// Read reads data from the store.
func (s *FileStore) Read(offset, length uint64) ([]byte, error) {
	if err := checkRange(offset, length, s.size); err != nil {
		return nil, err
	}

	result := make([]byte, 0, length)
	for length > 0 {
		p, err := s.page(offset / s.config.PageSize)
		if err != nil {
			return nil, err
		}
		pOffset := offset % s.config.PageSize
		n := min(length, s.config.PageSize-pOffset)
		result = append(result, p.data[pOffset:pOffset+n]...)

		offset += n
		length -= n
	}
	return result, nil
}

// Write writes data to the store.
func (s *FileStore) Write(offset uint64, data []byte) error {
	if s.readOnly {
		return errors.WithStack(types.ErrReadOnly)
	}
	for len(data) > 0 {
		p, err := s.page(offset / s.config.PageSize)
		if err != nil {
			return err
		}
		pOffset := offset % s.config.PageSize
		n := copy(p.data[pOffset:], data)

		offset += uint64(n)
		data = data[n:]
		if offset > s.size {
			s.size = offset
		}
	}
	return nil
}

// Sync flushes all the cached pages and syncs the file.
func (s *FileStore) Sync() error {
	if s.readOnly {
		return nil
	}
	for _, p := range s.pages {
		if err := s.flush(p); err != nil {
			return err
		}
	}

	// Pages containing only zeros are never written, so file might be shorter.
	info, err := s.file.Stat()
	if err != nil {
		return errors.WithStack(err)
	}
	if uint64(info.Size()) < s.size {
		if err := s.file.Truncate(int64(s.size)); err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(s.file.Sync())
}

// Close syncs and closes the file.
func (s *FileStore) Close() error {
	if err := s.Sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return errors.WithStack(s.file.Close())
}

// Flushes returns the number of pages written to the file so far.
func (s *FileStore) Flushes() uint64 {
	return s.flushes
}

func (s *FileStore) page(index uint64) (*page, error) {
	s.clock++
	if p := s.pages[index]; p != nil {
		p.lastUse = s.clock
		return p, nil
	}

	if len(s.pages) >= s.config.CachePages {
		if err := s.evict(); err != nil {
			return nil, err
		}
	}

	p := &page{
		index:   index,
		data:    make([]byte, s.config.PageSize),
		lastUse: s.clock,
	}
	if _, err := s.file.ReadAt(p.data, int64(index*s.config.PageSize)); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.WithStack(err)
	}
	p.checksum = xxhash.Sum64(p.data)
	s.pages[index] = p

	return p, nil
}

func (s *FileStore) evict() error {
	var victim *page
	for _, p := range s.pages {
		if victim == nil || p.lastUse < victim.lastUse {
			victim = p
		}
	}
	if err := s.flush(victim); err != nil {
		return err
	}
	delete(s.pages, victim.index)
	return nil
}

func (s *FileStore) flush(p *page) error {
	checksum := xxhash.Sum64(p.data)
	if checksum == p.checksum {
		return nil
	}

	offset := p.index * s.config.PageSize
	if offset >= s.size {
		return nil
	}
	n := min(s.config.PageSize, s.size-offset)
	if _, err := s.file.WriteAt(p.data[:n], int64(offset)); err != nil {
		return errors.WithStack(err)
	}
	p.checksum = checksum
	s.flushes++
	return nil
}
