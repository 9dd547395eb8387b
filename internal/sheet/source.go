// Package sheet reads the recipient configuration sheet from a published
// CSV export. The first row is the header; data rows may be ragged and are
// returned as-is for the expander to interpret.
package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"

	"caldigest/internal/external"
	"caldigest/internal/types"
)

// CSVSource implements types.SheetSource over an HTTP CSV endpoint, such
// as a Google Sheets "publish to web" CSV URL.
type CSVSource struct {
	base *external.BaseClient
	url  string
	log  types.Logger
}

// NewCSVSource creates a CSVSource for the given CSV URL.
func NewCSVSource(base *external.BaseClient, url string, log types.Logger) *CSVSource {
	if base == nil {
		base = external.NewBaseClient(nil, "sheet-csv")
	}
	return &CSVSource{base: base, url: url, log: log}
}

// FetchTable downloads and parses the sheet. Any failure reaching or
// decoding the sheet is a config-source error: without the sheet there is
// no recipient list and the run cannot proceed.
func (s *CSVSource) FetchTable(ctx context.Context) (*types.SheetTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigSourceUnavailable,
			"failed to build sheet request", err)
	}

	resp, err := s.base.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigSourceUnavailable,
			"sheet fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(types.ErrCodeConfigSourceUnavailable,
			fmt.Sprintf("sheet endpoint returned %d", resp.StatusCode), nil)
	}

	reader := csv.NewReader(resp.Body)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigSourceUnavailable,
			"failed to parse sheet csv", err)
	}
	if len(records) == 0 {
		return nil, types.NewAppError(types.ErrCodeConfigSourceUnavailable,
			"sheet is empty", nil)
	}

	table := &types.SheetTable{
		Header: records[0],
		Rows:   records[1:],
	}

	s.log.Info("sheet loaded", "columns", len(table.Header), "rows", len(table.Rows))
	return table, nil
}

var _ types.SheetSource = (*CSVSource)(nil)
