package archivesvc

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trezcool/vidyalaya/core/promotion"
)

type memArchive struct {
	info    promotion.ArchiveInfo
	content []byte
}

// memStore keeps archives in memory; used by tests and the in-memory API.
type memStore struct {
	mutex    sync.RWMutex
	archives map[string]memArchive
}

var _ promotion.ArchiveStore = (*memStore)(nil)

func NewMemStore() *memStore {
	return &memStore{archives: make(map[string]memArchive)}
}

func (s *memStore) Create(ctx context.Context, name string, content []byte) (promotion.ArchiveInfo, error) {
	if err := ctx.Err(); err != nil {
		return promotion.ArchiveInfo{}, err
	}
	year, err := promotion.ParseArchiveName(name)
	if err != nil {
		return promotion.ArchiveInfo{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.archives[name]; ok {
		return promotion.ArchiveInfo{}, promotion.ErrArchiveExists
	}
	a := memArchive{
		info: promotion.ArchiveInfo{
			Name:      name,
			Year:      year,
			Size:      int64(len(content)),
			CreatedAt: time.Now().UTC(),
		},
		content: append([]byte(nil), content...),
	}
	s.archives[name] = a
	return a.info, nil
}

func (s *memStore) List(ctx context.Context) ([]promotion.ArchiveInfo, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	archives := make([]promotion.ArchiveInfo, 0, len(s.archives))
	for _, a := range s.archives {
		archives = append(archives, a.info)
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].Name < archives[j].Name })
	return archives, nil
}

func (s *memStore) Fetch(ctx context.Context, name string) (promotion.ArchiveInfo, []byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	a, ok := s.archives[name]
	if !ok {
		return promotion.ArchiveInfo{}, nil, promotion.ErrArchiveNotFound
	}
	return a.info, append([]byte(nil), a.content...), nil
}

func (s *memStore) Discard(ctx context.Context, name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.archives, name)
	return nil
}
