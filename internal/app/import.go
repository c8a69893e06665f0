package app

import (
	"context"
	"errors"

	"case-price-watcher/internal/sheet"
)

// Import loads the item catalog from an XLSX workbook into the database.
// Position reflects row order in the workbook; re-importing moves items.
func (a *App) Import(ctx context.Context, opts ImportOptions) error {
	if opts.Path == "" {
		return errors.New("--file must be provided")
	}

	rows, err := sheet.ReadCatalog(opts.Path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.New("workbook contains no catalog rows")
	}

	if opts.DryRun {
		for _, row := range rows {
			a.Logger.Info().Int("position", row.Position).Str("name", row.Name).Msg("dry-run: would upsert item")
		}
		a.Logger.Info().Int("items", len(rows)).Msg("dry-run import completed")
		return nil
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	imported := 0
	for _, row := range rows {
		var url *string
		if row.SteamURL != "" {
			value := row.SteamURL
			url = &value
		}

		if _, err := store.UpsertItem(ctx, row.Name, url, row.Position); err != nil {
			a.Logger.Error().Err(err).Str("name", row.Name).Msg("failed to upsert item")
			continue
		}
		imported++
	}

	a.Logger.Info().Int("imported", imported).Int("total", len(rows)).Msg("catalog import completed")
	if imported < len(rows) {
		return errors.New("some catalog rows failed to import")
	}
	return nil
}
