package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const BackendLocal = "local"

// Local stores uploads as files in one directory.
type Local struct {
	dir         string
	downloadURL string
	now         func() time.Time
}

// NewLocal creates dir if needed. downloadURL is the route prefix files are served under.
func NewLocal(dir, downloadURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, downloadURL: strings.TrimSuffix(downloadURL, "/"), now: time.Now}, nil
}

func (l *Local) Upload(ctx context.Context, blob io.Reader, meta core.Upload) (core.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return core.StoredFile{}, err
	}
	at := l.now().UTC()
	name := meta.Name
	if name == "" {
		name = FileName(meta, at)
	}
	if err := CheckName(name); err != nil {
		return core.StoredFile{}, err
	}

	path := filepath.Join(l.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return core.StoredFile{}, err
	}
	size, err := io.Copy(f, blob)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return core.StoredFile{}, fmt.Errorf("write %s: %w", name, err)
	}

	log.Info().Str("module", "storage").Str("file", name).Int64("size", size).Msg("stored locally")
	return core.StoredFile{
		ID:             uuid.NewString(),
		Filename:       name,
		OriginalName:   meta.OriginalName,
		ConversationID: meta.ConversationID,
		ParticipantID:  meta.ParticipantID,
		Tag:            tagOrDefault(meta.Tag),
		Size:           size,
		UploadedAt:     at,
		Locator:        l.downloadURL + "/" + name,
		Backend:        BackendLocal,
	}, nil
}

// Path returns the on-disk path of a stored file.
func (l *Local) Path(name string) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	path := filepath.Join(l.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: file %s", domain.ErrNotFound, name)
		}
		return "", err
	}
	return path, nil
}

func (l *Local) Open(name string) (*os.File, error) {
	path, err := l.Path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (l *Local) Remove(name string) error {
	path, err := l.Path(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

// Scan lists files kept locally for a conversation, oldest first. It is the
// listing fallback when the catalog has nothing.
func (l *Local) Scan(id domain.ConversationID) ([]core.StoredFile, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	conv := safe(string(id))
	var out []core.StoredFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		participant, tag, _, ok := parseName(e.Name(), conv)
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, core.StoredFile{
			Filename:       e.Name(),
			ConversationID: id,
			ParticipantID:  domain.ParticipantID(participant),
			Tag:            tag,
			Size:           info.Size(),
			UploadedAt:     info.ModTime().UTC(),
			Locator:        l.downloadURL + "/" + e.Name(),
			Backend:        BackendLocal,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func tagOrDefault(tag string) string {
	if tag == "" {
		return DefaultTag
	}
	return tag
}
