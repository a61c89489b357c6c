// Package badgerstore keeps the best-effort mirror of presence and
// conversations, and the catalog of uploaded recordings, in Badger.
package badgerstore

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	participantPrefix  = "participant:"
	conversationPrefix = "conversation:"
	filePrefix         = "file:"
)

// Open opens the store at path, or an in-memory store when inMemory is set.
func Open(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{log.With().Str("module", "mirror").Logger()}).
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	log.Info().Str("module", "mirror").Str("path", path).Bool("in_memory", inMemory).Msg("store opened")
	return db, nil
}

type badgerLogger struct{ l zerolog.Logger }

func (b badgerLogger) Errorf(f string, v ...any) { b.l.Error().Msg(trim(f, v)) }
func (b badgerLogger) Warningf(f string, v ...any) { b.l.Warn().Msg(trim(f, v)) }
func (b badgerLogger) Infof(f string, v ...any) { b.l.Info().Msg(trim(f, v)) }
func (b badgerLogger) Debugf(f string, v ...any) { b.l.Debug().Msg(trim(f, v)) }

func trim(f string, v []any) string {
	return strings.TrimSpace(fmt.Sprintf(f, v...))
}
