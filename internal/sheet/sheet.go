// Package sheet is the spreadsheet boundary: catalog import from, and market
// export to, XLSX workbooks. Catalog position is a spreadsheet concern and
// surfaces only here.
package sheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"case-price-watcher/internal/storage"
)

const marketSheet = "Market"

// CatalogRow is one imported catalog entry in sheet order.
type CatalogRow struct {
	Name     string
	SteamURL string
	Position int
}

// ReadCatalog loads catalog rows from the first sheet of an XLSX workbook.
// The first row is a header; column A holds the item name, column B an
// optional reference URL. Blank names are skipped.
func ReadCatalog(path string) ([]CatalogRow, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheetName := book.GetSheetName(0)
	rows, err := book.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheetName, err)
	}

	catalog := make([]CatalogRow, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue
		}

		name := ""
		if len(row) > 0 {
			name = strings.TrimSpace(row[0])
		}
		if name == "" {
			continue
		}

		url := ""
		if len(row) > 1 {
			url = strings.TrimSpace(row[1])
		}

		catalog = append(catalog, CatalogRow{
			Name:     name,
			SteamURL: url,
			Position: len(catalog),
		})
	}

	return catalog, nil
}

// MarketRow pairs an item with its current statistics for export. Statistics
// may be nil for items never priced.
type MarketRow struct {
	Item  storage.Item
	Stats *storage.ItemStatistics
}

// WriteMarket renders one row per catalog position with the item's current
// price and derived statistics.
func WriteMarket(path string, rows []MarketRow) error {
	book := excelize.NewFile()
	defer book.Close()

	index, err := book.NewSheet(marketSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	book.SetActiveSheet(index)
	_ = book.DeleteSheet("Sheet1")

	header := []interface{}{"Name", "Current", "Min 30d", "Max 30d", "Avg 30d", "Δ24h %", "Δ7d %", "Δ30d %", "Updated"}
	if err := book.SetSheetRow(marketSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}

		values := []interface{}{row.Item.Name}
		if row.Stats != nil {
			current := ""
			if row.Stats.CurrentPrice != nil {
				current = row.Stats.CurrentPrice.StringFixed(2)
			}
			values = append(values,
				current,
				row.Stats.MinPrice30d.StringFixed(2),
				row.Stats.MaxPrice30d.StringFixed(2),
				row.Stats.AvgPrice30d.StringFixed(2),
				row.Stats.PriceChange24h.StringFixed(2),
				row.Stats.PriceChange7d.StringFixed(2),
				row.Stats.PriceChange30d.StringFixed(2),
				row.Stats.LastUpdated.UTC().Format("2006-01-02 15:04"),
			)
		} else {
			values = append(values, "N/A")
		}

		if err := book.SetSheetRow(marketSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := book.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
