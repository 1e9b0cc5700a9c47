package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"irma.ai/internal/persistence/indexdb"
	"irma.ai/internal/sim/tuning"
)

func openIndex(dataDir string, tune tuning.Tuning, disableDB bool) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("IRMA_INDEX_BACKEND")))
	switch backend {
	case "", "sqlite":
	case "none", "off", "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported IRMA_INDEX_BACKEND: %s", backend)
	}

	idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index", "irma.sqlite"), tune.World.Width)
	if err != nil {
		return nil, err
	}
	if err := idx.UpsertTuning(tune); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("upsert tuning: %w", err)
	}
	return idx, nil
}
