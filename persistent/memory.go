package persistent

// NewMemoryStore creates new in-memory "persistent" store. Used for testing and for streams kept in RAM.
func NewMemoryStore(data []byte) *MemoryStore {
	return &MemoryStore{
		data: data,
	}
}

// MemoryStore defines "persistent" in-memory store.
type MemoryStore struct {
	data []byte
}

// Size returns size of the store.
func (s *MemoryStore) Size() uint64 {
	return uint64(len(s.data))
}

// Read reads data from the store.
func (s *MemoryStore) Read(offset, length uint64) ([]byte, error) {
	if err := checkRange(offset, length, s.Size()); err != nil {
		return nil, err
	}
	return s.data[offset : offset+length], nil
}

// Write writes data to the store.
func (s *MemoryStore) Write(offset uint64, data []byte) error {
	if end := offset + uint64(len(data)); end > uint64(len(s.data)) {
		s.data = append(s.data, make([]byte, end-uint64(len(s.data)))...)
	}
	copy(s.data[offset:], data)
	return nil
}

// Bytes returns the content of the store.
func (s *MemoryStore) Bytes() []byte {
	return s.data
}

// Sync does nothing.
func (s *MemoryStore) Sync() error {
	return nil
}

// Close does nothing.
func (s *MemoryStore) Close() error {
	return nil
}
