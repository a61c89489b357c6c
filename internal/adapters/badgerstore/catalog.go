package badgerstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dkeye/Duet/internal/core"
	"github.com/dkeye/Duet/internal/domain"
)

// Catalog indexes uploaded recordings by conversation, ordered by upload time.
type Catalog struct {
	db *badger.DB
}

func NewCatalog(db *badger.DB) *Catalog {
	return &Catalog{db: db}
}

// filesOf length-prefixes the id so no conversation's key range
// contains another's, whatever bytes the id holds.
func filesOf(id domain.ConversationID) string {
	return fmt.Sprintf("%s%d:%s:", filePrefix, len(id), id)
}

func fileKey(f core.StoredFile) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", filesOf(f.ConversationID), f.UploadedAt.UnixNano(), f.ID))
}

func (c *Catalog) Record(ctx context.Context, f core.StoredFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(fileKey(f), data)
	})
}

func (c *Catalog) ListConversation(ctx context.Context, id domain.ConversationID) ([]core.StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scan[core.StoredFile](c.db, filesOf(id))
}
