// Package archivesvc stores graduation archives.
package archivesvc

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/vidyalaya/core/promotion"
)

type fsStore struct {
	dir string
}

var _ promotion.ArchiveStore = (*fsStore)(nil)

// NewFSStore keeps archives as files under dir, creating it if needed.
func NewFSStore(dir string) (*fsStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating archive dir %s", dir)
	}
	return &fsStore{dir: dir}, nil
}

func (s *fsStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *fsStore) info(name string, fi os.FileInfo) promotion.ArchiveInfo {
	year, _ := promotion.ParseArchiveName(name)
	return promotion.ArchiveInfo{
		Name:      name,
		Year:      year,
		Size:      fi.Size(),
		CreatedAt: fi.ModTime().UTC(),
	}
}

func (s *fsStore) Create(ctx context.Context, name string, content []byte) (promotion.ArchiveInfo, error) {
	if err := ctx.Err(); err != nil {
		return promotion.ArchiveInfo{}, err
	}
	if _, err := promotion.ParseArchiveName(name); err != nil {
		return promotion.ArchiveInfo{}, errors.Errorf("invalid archive name %q", name)
	}

	f, err := os.OpenFile(s.path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		if os.IsExist(err) {
			return promotion.ArchiveInfo{}, promotion.ErrArchiveExists
		}
		return promotion.ArchiveInfo{}, errors.Wrap(err, "creating archive")
	}

	_, err = f.Write(content)
	if err == nil {
		err = f.Sync()
	}
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		_ = os.Remove(s.path(name))
		return promotion.ArchiveInfo{}, errors.Wrap(err, "writing archive")
	}

	fi, err := os.Stat(s.path(name))
	if err != nil {
		return promotion.ArchiveInfo{}, errors.Wrap(err, "reading archive info")
	}
	return s.info(name, fi), nil
}

func (s *fsStore) List(ctx context.Context) ([]promotion.ArchiveInfo, error) {
	entries, err := ioutil.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "listing archives")
	}
	archives := make([]promotion.ArchiveInfo, 0, len(entries))
	for _, fi := range entries {
		if fi.IsDir() {
			continue
		}
		if _, err := promotion.ParseArchiveName(fi.Name()); err != nil {
			continue
		}
		archives = append(archives, s.info(fi.Name(), fi))
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].Name < archives[j].Name })
	return archives, nil
}

func (s *fsStore) Fetch(ctx context.Context, name string) (promotion.ArchiveInfo, []byte, error) {
	if _, err := promotion.ParseArchiveName(name); err != nil {
		return promotion.ArchiveInfo{}, nil, promotion.ErrArchiveNotFound
	}
	fi, err := os.Stat(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return promotion.ArchiveInfo{}, nil, promotion.ErrArchiveNotFound
		}
		return promotion.ArchiveInfo{}, nil, errors.Wrap(err, "reading archive info")
	}
	content, err := ioutil.ReadFile(s.path(name))
	if err != nil {
		return promotion.ArchiveInfo{}, nil, errors.Wrap(err, "reading archive")
	}
	return s.info(name, fi), content, nil
}

func (s *fsStore) Discard(ctx context.Context, name string) error {
	if _, err := promotion.ParseArchiveName(name); err != nil {
		return promotion.ErrArchiveNotFound
	}
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "discarding archive")
	}
	return nil
}
