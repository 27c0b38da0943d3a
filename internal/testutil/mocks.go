// Package testutil provides shared mock implementations of domain interfaces
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"bi-atlas/internal/domain"
)

// === Blob Store Mock ===

// MemoryStore is an in-memory domain.BlobStore for tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	mtimes  map[string]time.Time

	// PutFn, when set, intercepts Put calls (e.g. to inject failures).
	PutFn func(ctx context.Context, key string, data []byte) error

	// PutCount tracks total Put calls for checkpoint assertions.
	PutCount int
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		mtimes:  make(map[string]time.Time),
	}
}

var _ domain.BlobStore = (*MemoryStore)(nil)

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound("object %s not found", key)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	if s.PutFn != nil {
		if err := s.PutFn(ctx, key, data); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[key] = stored
	s.mtimes[key] = time.Now()
	s.PutCount++
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ObjectInfo
	for key, data := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, domain.ObjectInfo{
			Key:          key,
			Size:         int64(len(data)),
			LastModified: s.mtimes[key],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return domain.ErrNotFound("object %s not found", key)
	}
	delete(s.objects, key)
	delete(s.mtimes, key)
	return nil
}

// Keys returns all stored keys, sorted.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// === Asset Source Mock ===

// FakeSource implements domain.AssetSource over a scripted asset universe.
// Listing pages are derived from the Assets map; per-call error injection
// simulates throttling and permanent provider failures.
type FakeSource struct {
	mu     sync.Mutex
	Assets map[domain.AssetType][]*domain.Asset

	// ListErrs injects errors for specific (type, page) fetches. Each entry
	// is consumed on use, so a retry that should succeed simply runs out of
	// scheduled errors.
	ListErrs map[string][]error

	// DetailErrs injects errors for GetAsset by asset id.
	DetailErrs map[string]error

	// PermissionsErr and TagsErr apply to every enrichment call when set.
	PermissionsErr error
	TagsErr        error

	// ListCalls counts page fetches per asset type, including failed ones.
	ListCalls map[domain.AssetType]int
}

// NewFakeSource creates a FakeSource with an empty universe.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		Assets:     make(map[domain.AssetType][]*domain.Asset),
		ListErrs:   make(map[string][]error),
		DetailErrs: make(map[string]error),
		ListCalls:  make(map[domain.AssetType]int),
	}
}

var _ domain.AssetSource = (*FakeSource)(nil)

// Add appends assets to the scripted universe.
func (f *FakeSource) Add(assets ...*domain.Asset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range assets {
		f.Assets[a.Type] = append(f.Assets[a.Type], a)
	}
}

// FailPage schedules errs for successive fetches of the given page (0-based)
// of one asset type.
func (f *FakeSource) FailPage(t domain.AssetType, page int, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pageKey(t, page)
	f.ListErrs[key] = append(f.ListErrs[key], errs...)
}

func pageKey(t domain.AssetType, page int) string {
	return string(t) + "#" + strconv.Itoa(page)
}

func (f *FakeSource) Lister(t domain.AssetType) domain.AssetLister {
	return &fakeLister{src: f, t: t}
}

type fakeLister struct {
	src *FakeSource
	t   domain.AssetType
}

func (l *fakeLister) AssetType() domain.AssetType { return l.t }

func (l *fakeLister) ListPage(ctx context.Context, nextToken string, pageSize int) (*domain.SummaryPage, error) {
	f := l.src
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ListCalls[l.t]++

	page := 0
	if nextToken != "" {
		if n, err := strconv.Atoi(strings.TrimPrefix(nextToken, "page-")); err == nil {
			page = n
		}
	}

	key := pageKey(l.t, page)
	if errs := f.ListErrs[key]; len(errs) > 0 {
		err := errs[0]
		f.ListErrs[key] = errs[1:]
		return nil, err
	}

	all := f.Assets[l.t]
	start := page * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	items := make([]domain.AssetSummary, 0, end-start)
	for _, a := range all[start:end] {
		items = append(items, domain.AssetSummary{
			ID:          a.ID,
			ARN:         a.ARN,
			Name:        a.Name,
			Type:        a.Type,
			LastUpdated: a.LastModified,
		})
	}

	token := ""
	if end < len(all) {
		token = "page-" + strconv.Itoa(page+1)
	}
	return &domain.SummaryPage{Items: items, NextToken: token}, nil
}

func (f *FakeSource) GetAsset(ctx context.Context, t domain.AssetType, id string) (*domain.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.DetailErrs[id]; err != nil {
		return nil, err
	}
	for _, a := range f.Assets[t] {
		if a.ID == id {
			clone := *a
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound("%s %s not found", t, id)
}

func (f *FakeSource) GetPermissions(ctx context.Context, t domain.AssetType, id string) ([]domain.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PermissionsErr != nil {
		return nil, f.PermissionsErr
	}
	for _, a := range f.Assets[t] {
		if a.ID == id {
			return a.Permissions, nil
		}
	}
	return nil, domain.ErrNotFound("%s %s not found", t, id)
}

func (f *FakeSource) GetTags(ctx context.Context, t domain.AssetType, id string) ([]domain.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TagsErr != nil {
		return nil, f.TagsErr
	}
	for _, a := range f.Assets[t] {
		if a.ID == id {
			return a.Tags, nil
		}
	}
	return nil, domain.ErrNotFound("%s %s not found", t, id)
}

// === Field Metadata Mock ===

// MockFieldMetadataRepo implements domain.FieldMetadataRepository in memory.
type MockFieldMetadataRepo struct {
	mu      sync.Mutex
	entries map[string]*domain.FieldMetadata
}

// NewMockFieldMetadataRepo creates an empty in-memory metadata repository.
func NewMockFieldMetadataRepo() *MockFieldMetadataRepo {
	return &MockFieldMetadataRepo{entries: make(map[string]*domain.FieldMetadata)}
}

var _ domain.FieldMetadataRepository = (*MockFieldMetadataRepo)(nil)

func metaKey(datasetID, fieldName string) string {
	return datasetID + "/" + fieldName
}

func (m *MockFieldMetadataRepo) Get(ctx context.Context, datasetID, fieldName string) (*domain.FieldMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.entries[metaKey(datasetID, fieldName)]
	if !ok {
		return nil, domain.ErrNotFound("field metadata %s/%s not found", datasetID, fieldName)
	}
	clone := *meta
	return &clone, nil
}

func (m *MockFieldMetadataRepo) Upsert(ctx context.Context, meta *domain.FieldMetadata) (*domain.FieldMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *meta
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now()
	}
	m.entries[metaKey(meta.DatasetID, meta.FieldName)] = &stored
	clone := stored
	return &clone, nil
}

func (m *MockFieldMetadataRepo) Delete(ctx context.Context, datasetID, fieldName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metaKey(datasetID, fieldName)
	if _, ok := m.entries[key]; !ok {
		return domain.ErrNotFound("field metadata %s/%s not found", datasetID, fieldName)
	}
	delete(m.entries, key)
	return nil
}

func (m *MockFieldMetadataRepo) List(ctx context.Context) ([]domain.FieldMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]domain.FieldMetadata, 0, len(keys))
	for _, k := range keys {
		out = append(out, *m.entries[k])
	}
	return out, nil
}
