package storage

import (
	"context"
	"io"

	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// Pipeline writes every upload locally first, then pushes it to Remote when
// one is configured. The local copy is removed only after the remote upload
// succeeds. Catalog writes are best-effort.
type Pipeline struct {
	Local   *Local
	Remote  core.Sink
	Catalog core.Catalog
}

func (p *Pipeline) Upload(ctx context.Context, blob io.Reader, meta core.Upload) (core.StoredFile, error) {
	stored, err := p.Local.Upload(ctx, blob, meta)
	if err != nil {
		return core.StoredFile{}, err
	}
	if p.Remote != nil {
		stored = p.push(ctx, stored, meta)
	}
	if p.Catalog != nil {
		if err := p.Catalog.Record(ctx, stored); err != nil {
			log.Warn().Err(err).Str("module", "storage").Str("file", stored.Filename).Msg("catalog record failed")
		}
	}
	return stored, nil
}

func (p *Pipeline) push(ctx context.Context, local core.StoredFile, meta core.Upload) core.StoredFile {
	f, err := p.Local.Open(local.Filename)
	if err != nil {
		log.Warn().Err(err).Str("module", "storage").Str("file", local.Filename).Msg("reopen for remote upload failed, keeping local copy")
		return local
	}
	meta.Name = local.Filename
	remote, err := p.Remote.Upload(ctx, f, meta)
	_ = f.Close()
	if err != nil {
		log.Warn().Err(err).Str("module", "storage").Str("file", local.Filename).Msg("remote upload failed, keeping local copy")
		return local
	}
	if err := p.Local.Remove(local.Filename); err != nil {
		log.Warn().Err(err).Str("module", "storage").Str("file", local.Filename).Msg("remove local copy")
	}
	remote.ID = local.ID
	remote.Size = local.Size
	remote.UploadedAt = local.UploadedAt
	return remote
}

// List returns catalog entries for a conversation, or a scan of the local
// directory when the catalog has none.
func (p *Pipeline) List(ctx context.Context, id domain.ConversationID) ([]core.StoredFile, error) {
	if p.Catalog != nil {
		files, err := p.Catalog.ListConversation(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("module", "storage").Str("conversation", string(id)).Msg("catalog list failed, scanning upload dir")
		} else if len(files) > 0 {
			return files, nil
		}
	}
	return p.Local.Scan(id)
}
