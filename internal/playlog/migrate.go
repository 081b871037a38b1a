package playlog

import (
	"context"
	"log"
)

func AutoMigrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS plays (
          id          uuid PRIMARY KEY,
          player      TEXT NOT NULL,
          src         TEXT NOT NULL,
          type        TEXT NOT NULL DEFAULT '',
          outcome     TEXT NOT NULL DEFAULT 'shown',
          started_at  TIMESTAMPTZ NOT NULL,
          duration_ms BIGINT NOT NULL DEFAULT 0,
          created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("migrate playlog: %v", err)
		return err
	}

	if _, err := db.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_plays_started_at ON plays(started_at DESC)
    `); err != nil {
		return err
	}

	if _, err := db.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_plays_src ON plays(src, started_at DESC)
    `); err != nil {
		return err
	}
	return nil
}
