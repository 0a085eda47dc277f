package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"disparos/internal/config"
	"disparos/internal/core"
	ports "disparos/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// valueInputOption keeps cells verbatim so date and time keys stay text.
const valueInputOption = "RAW"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ports.Store = (*Client)(nil)

// New creates a client for one worksheet of a spreadsheet. opts carry the
// credentials (or a preconfigured HTTP client and endpoint).
func New(ctx context.Context, spreadsheetID, sheetName string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		return nil, errors.New("missing sheet name")
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// Options identify the worksheet and the service account used to reach it.
type Options struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// OptionsFromConfig picks the Google settings out of the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}
}

// NewFromOptions creates a client authenticated with a service account.
// Inline JSON takes precedence over the credentials file.
func NewFromOptions(ctx context.Context, o Options) (*Client, error) {
	credentialsJSON, err := serviceAccountJSON(ctx, o)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope,
		"sheet", o.SheetName)

	return New(ctx, o.SpreadsheetID, o.SheetName,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func serviceAccountJSON(ctx context.Context, o Options) ([]byte, error) {
	inline := strings.TrimSpace(o.ServiceAccountJSON)
	file := strings.TrimSpace(o.ServiceAccountFile)
	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
}

// ReadAllRows returns every populated row of the worksheet. The API omits
// trailing empty cells, so rows may be shorter than the header.
func (c *Client) ReadAllRows(ctx context.Context) ([][]string, error) {
	if c.svc == nil {
		return nil, &core.StoreIOError{Op: "read", Err: errors.New("sheets service not initialized")}
	}
	rng := quoteSheet(c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, &core.StoreIOError{Op: "read", Err: fmt.Errorf("read %s: %w", rng, err)}
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		out[i] = toStrings(row)
	}
	slog.DebugContext(ctx, "Read sheet rows", "sheet", c.sheetName, "rows", len(out))
	return out, nil
}

// AppendRows writes rows starting at the physical row atRow with a single
// Values.Update call, so either every row is written or none is.
func (c *Client) AppendRows(ctx context.Context, rows [][]string, atRow int) error {
	if c.svc == nil {
		return &core.StoreIOError{Op: "append", Err: errors.New("sheets service not initialized")}
	}
	if atRow < 1 {
		return &core.StoreIOError{Op: "append", Err: fmt.Errorf("invalid start row %d", atRow)}
	}
	if len(rows) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A%d", quoteSheet(c.sheetName), atRow)
	vr := &gsheet.ValueRange{Values: toValues(rows)}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	if err != nil {
		return &core.StoreIOError{Op: "append", Err: fmt.Errorf("update %s: %w", rng, err)}
	}
	slog.InfoContext(ctx, "Appended summary rows",
		"sheet", c.sheetName,
		"range", resp.UpdatedRange,
		"rows", resp.UpdatedRows)
	return nil
}

// quoteSheet quotes a worksheet name for A1 notation.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func toValues(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		vals := make([]interface{}, len(row))
		for j, v := range row {
			vals[j] = v
		}
		out[i] = vals
	}
	return out
}
