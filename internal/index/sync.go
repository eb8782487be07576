package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/archgraph/internal/engine"
)

// Sync runs one engine pass and brings the outputs up to date:
//   - the JSON artifact is rewritten atomically when writeArtifact is set
//   - the SQLite mirror is replaced wholesale
//
// A fatal run leaves both the artifact and the mirror untouched.
func Sync(ctx context.Context, db Store, eng *engine.Engine, writeArtifact bool, logger *slog.Logger) (*engine.Result, error) {
	res, err := eng.Run(ctx)
	if err != nil {
		return nil, err
	}

	if writeArtifact {
		if err := eng.WriteIndex(res); err != nil {
			return nil, err
		}
	}

	if db != nil {
		snap := Snapshot{RunID: res.RunID, Index: res.Index, Report: res.Report, Orphans: res.Orphans}
		if err := db.Replace(snap); err != nil {
			return nil, fmt.Errorf("index: sync: %w", err)
		}
		logger.Debug("sync: mirror replaced",
			slog.String("run_id", res.RunID),
			slog.Int("features", len(res.Index.Features)),
			slog.Int("code", len(res.Index.Code)))
	}
	return res, nil
}
