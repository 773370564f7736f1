package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"meurenda/internal/core"
	ports "meurenda/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	// DefaultSheetName is the tab the ledger is mirrored to.
	DefaultSheetName = "Lancamentos"

	valueInputOption = "RAW"
	lastColumn       = "F"
)

// Client mirrors the ledger into one tab of a spreadsheet. Column A holds
// the transaction id and is used to locate rows.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger

	sheetIDOnce sync.Once
	sheetID     int64
	sheetIDErr  error
}

var _ ports.LedgerMirror = (*Client)(nil)

// New creates a Sheets client authenticated with service account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string, logger *slog.Logger) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	if logger == nil {
		logger = slog.Default()
	}

	creds, err := loadCredentials()
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID, "sheet", sheetName)
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger,
	}, nil
}

func loadCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

func (c *Client) rng(cells string) string {
	return fmt.Sprintf("'%s'!%s", c.sheetName, cells)
}

// Upsert implements ports.LedgerMirror
func (c *Client) Upsert(ctx context.Context, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		if err := c.writeHeader(ctx); err != nil {
			return err
		}
	}

	vr := &gsheet.ValueRange{Values: [][]interface{}{rowValues(tx)}}
	if rows := findRows(ids, func(id string) bool { return id == tx.ID }); len(rows) > 0 {
		target := c.rng(fmt.Sprintf("A%d:%s%d", rows[0]+1, lastColumn, rows[0]+1))
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target, vr).
			ValueInputOption(valueInputOption).Context(ctx).Do(); err != nil {
			return fmt.Errorf("update row for %s: %w", tx.ID, err)
		}
		c.logger.DebugContext(ctx, "Ledger row updated", "transaction_id", tx.ID, "row", rows[0]+1)
		return nil
	}

	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.rng("A:"+lastColumn), vr).
		ValueInputOption(valueInputOption).InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append row for %s: %w", tx.ID, err)
	}
	c.logger.DebugContext(ctx, "Ledger row appended", "transaction_id", tx.ID)
	return nil
}

// Delete implements ports.LedgerMirror
func (c *Client) Delete(ctx context.Context, id string) error {
	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	return c.deleteRows(ctx, findRows(ids, func(v string) bool { return v == id }))
}

// ClearType implements ports.LedgerMirror
func (c *Client) ClearType(ctx context.Context, typ core.TransactionType) error {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("C:C")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read type column: %w", err)
	}
	types := column(resp.Values)
	return c.deleteRows(ctx, findRows(types, func(v string) bool { return v == string(typ) }))
}

// Reset implements ports.LedgerMirror
func (c *Client) Reset(ctx context.Context) error {
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, c.rng("A2:"+lastColumn), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear ledger sheet: %w", err)
	}
	return nil
}

func (c *Client) writeHeader(ctx context.Context) error {
	header := make([]interface{}, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	vr := &gsheet.ValueRange{Values: [][]interface{}{header}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.rng("A1:"+lastColumn+"1"), vr).
		ValueInputOption(valueInputOption).Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (c *Client) readIDs(ctx context.Context) ([]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.rng("A:A")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read id column: %w", err)
	}
	return column(resp.Values), nil
}

func (c *Client) deleteRows(ctx context.Context, rows []int64) error {
	if len(rows) == 0 {
		return nil
	}
	sheetID, err := c.lookupSheetID(ctx)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: deleteRequests(sheetID, rows)}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete %d rows: %w", len(rows), err)
	}
	c.logger.DebugContext(ctx, "Ledger rows deleted", "count", len(rows))
	return nil
}

func (c *Client) lookupSheetID(ctx context.Context) (int64, error) {
	c.sheetIDOnce.Do(func() {
		ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
		if err != nil {
			c.sheetIDErr = fmt.Errorf("read spreadsheet metadata: %w", err)
			return
		}
		for _, s := range ss.Sheets {
			if s.Properties != nil && s.Properties.Title == c.sheetName {
				c.sheetID = s.Properties.SheetId
				return
			}
		}
		c.sheetIDErr = fmt.Errorf("sheet %q not found", c.sheetName)
	})
	return c.sheetID, c.sheetIDErr
}

// rowValues renders tx in column order A..F.
func rowValues(tx core.Transaction) []interface{} {
	return []interface{}{
		tx.ID,
		tx.Date.String(),
		string(tx.Type),
		tx.Amount.InexactFloat64(),
		tx.Category,
		tx.Description,
	}
}

func column(values [][]interface{}) []string {
	out := make([]string, len(values))
	for i, row := range values {
		if len(row) > 0 {
			out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return out
}

// findRows returns the zero-based indexes of matching cells, skipping the
// header row.
func findRows(cells []string, match func(string) bool) []int64 {
	var rows []int64
	for i := 1; i < len(cells); i++ {
		if match(cells[i]) {
			rows = append(rows, int64(i))
		}
	}
	return rows
}

// deleteRequests deletes rows bottom-up so earlier deletions do not shift
// later indexes.
func deleteRequests(sheetID int64, rows []int64) []*gsheet.Request {
	sorted := slices.Clone(rows)
	slices.Sort(sorted)
	slices.Reverse(sorted)

	reqs := make([]*gsheet.Request, 0, len(sorted))
	for _, r := range sorted {
		reqs = append(reqs, &gsheet.Request{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: r,
					EndIndex:   r + 1,
				},
			},
		})
	}
	return reqs
}
