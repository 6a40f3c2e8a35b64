package corpus

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
)

// Open builds the Source selected by cfg.Corpus. A database source owns
// its connection and closes it on Close.
func Open(ctx context.Context, cfg *config.Config) (Source, error) {
	switch cfg.Corpus.Source {
	case "dir":
		return NewDirSource(cfg.Corpus.Dir, cfg.Corpus.Format == "html"), nil
	case "database":
		client, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrIO, err, "connecting to corpus database")
		}
		src, err := NewSQLSource(client.DB, cfg.Corpus.Table)
		if err != nil {
			client.Close()
			return nil, err
		}
		return src, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrConfig, 0, "unknown corpus source %q", cfg.Corpus.Source)
	}
}
