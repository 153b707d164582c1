package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/census-cli/internal/store"
)

// initStore opens the configured store for commands that cannot run
// without one.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("store.driver is none; set CENSUS_STORE_DRIVER to sqlite or postgres")
	}
	return st, nil
}
