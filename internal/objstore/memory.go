package objstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pavelanni/teachassist/internal/model"
)

// Memory is an in-process bucket. The storage key only gates access.
type Memory struct {
	name string

	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	data []byte
	obj  Object
}

// NewMemory creates an empty in-memory bucket.
func NewMemory(name string) *Memory {
	return &Memory{name: name, objects: make(map[string]memObject)}
}

// Opener returns an Opener that always yields this bucket, so data survives key changes.
func (m *Memory) Opener() Opener {
	return func(context.Context, string) (Bucket, error) { return m, nil }
}

func (m *Memory) Put(ctx context.Context, name string, data []byte, contentType string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	o := Object{Name: name, ContentType: contentType, Size: int64(len(cp)), Created: time.Now().UTC()}

	m.mu.Lock()
	m.objects[name] = memObject{data: cp, obj: o}
	m.mu.Unlock()
	return o, nil
}

func (m *Memory) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	mo, ok := m.objects[name]
	m.mu.RUnlock()
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := make([]byte, len(mo.data))
	copy(cp, mo.data)
	return cp, nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Object{}
	for name, mo := range m.objects {
		if strings.HasPrefix(name, prefix) {
			out = append(out, mo.obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) URL(name string) string {
	return "memory://" + m.name + "/" + name
}

func (m *Memory) Close() error { return nil }
