package blob

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

type memObject struct {
	data        []byte
	contentType string
}

// MemoryStore holds objects in memory, for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject)}
}

// Put stores a copy of data under path.
func (m *MemoryStore) Put(path string, data []byte, contentType string) error {
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[p] = memObject{data: bytes.Clone(data), contentType: contentType}
	return nil
}

func (m *MemoryStore) Fetch(ctx context.Context, path string) (*Object, error) {
	p, err := CleanPath(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Wrap(err, "fetch blob")
	}
	m.mu.RLock()
	o, ok := m.objects[p]
	m.mu.RUnlock()
	if !ok {
		return nil, xerrors.Wrapf(ErrNotFound, "blob %s", p)
	}
	ct := o.contentType
	if ct == "" {
		ct = DefaultContentType
	}
	return &Object{Body: io.NopCloser(bytes.NewReader(o.data)), ContentType: ct, Size: int64(len(o.data))}, nil
}
