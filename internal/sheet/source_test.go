package sheet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caldigest/internal/external"
	"caldigest/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (nopLogger) With(...any) types.Logger { return nopLogger{} }

const sheetCSV = `Recipient Email,Calendar ID,Timezone,Frequency
ann@example.com,team@example.com,America/New_York,daily
bob@example.com,"team@example.com,ops@example.com",,weekdays
carol@example.com,solo@example.com
`

func serveCSV(t *testing.T, status int, body string) *CSVSource {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewCSVSource(external.NewBaseClient(srv.Client(), "test-sheet"), srv.URL, nopLogger{})
}

func TestFetchTable(t *testing.T) {
	src := serveCSV(t, http.StatusOK, sheetCSV)

	table, err := src.FetchTable(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Recipient Email", "Calendar ID", "Timezone", "Frequency"}, table.Header)
	require.Len(t, table.Rows, 3)

	// Quoted multi-calendar cell stays one field.
	assert.Equal(t, "team@example.com,ops@example.com", table.Rows[1][1])

	// Ragged short row comes through as-is.
	assert.Len(t, table.Rows[2], 2)
}

func TestFetchTable_EmptySheet(t *testing.T) {
	src := serveCSV(t, http.StatusOK, "")

	_, err := src.FetchTable(context.Background())

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeConfigSourceUnavailable, appErr.Code)
}

func TestFetchTable_UpstreamFailure(t *testing.T) {
	src := serveCSV(t, http.StatusBadGateway, "oops")

	_, err := src.FetchTable(context.Background())

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeConfigSourceUnavailable, appErr.Code)
}
