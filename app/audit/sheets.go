package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var (
	ErrNoCredentials = errors.New("google credentials are required")
	ErrNoSheetID     = errors.New("google sheet id is required")
)

// ServiceFactory builds a Sheets client for one set of credentials.
type ServiceFactory func(ctx context.Context, credentials []byte) (*sheets.Service, error)

// NewServiceFromCredentials authenticates with a service account key.
func NewServiceFromCredentials(ctx context.Context, credentials []byte) (*sheets.Service, error) {
	return sheets.NewService(ctx,
		option.WithCredentialsJSON(credentials),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
}

// SheetsSink writes records to a Google Sheets tab. Schema checks and
// appends are serialised per destination.
type SheetsSink struct {
	newService ServiceFactory

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSheetsSink(factory ServiceFactory) *SheetsSink {
	if factory == nil {
		factory = NewServiceFromCredentials
	}
	return &SheetsSink{
		newService: factory,
		locks:      make(map[string]*sync.Mutex),
	}
}

// EnsureSchema creates the tab with a header row when missing, and inserts
// the header above existing data when row 1 does not match it.
func (s *SheetsSink) EnsureSchema(ctx context.Context, dest Destination) error {
	unlock := s.lock(dest)
	defer unlock()

	svc, err := s.service(ctx, dest)
	if err != nil {
		return err
	}
	return ensureSchema(ctx, svc, dest)
}

func (s *SheetsSink) Append(ctx context.Context, dest Destination, record Record) error {
	unlock := s.lock(dest)
	defer unlock()

	svc, err := s.service(ctx, dest)
	if err != nil {
		return err
	}
	if err := ensureSchema(ctx, svc, dest); err != nil {
		return err
	}

	_, err = svc.Spreadsheets.Values.Append(dest.SheetID, a1Range(dest.SheetName, "A1"), &sheets.ValueRange{
		Values: [][]any{toCells(record.Row())},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to append row to sheet '%s': %w", dest.SheetName, err)
	}

	slog.Info("Audit row stored", "sheet", dest.SheetName, "comment_id", record.CommentID)
	return nil
}

// RepliedCommentIDs reads the Comment ID column of the tab.
func (s *SheetsSink) RepliedCommentIDs(ctx context.Context, dest Destination) ([]string, error) {
	svc, err := s.service(ctx, dest)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Spreadsheets.Values.Get(dest.SheetID, a1Range(dest.SheetName, "")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet '%s': %w", dest.SheetName, err)
	}

	return commentIDs(toStrings(resp.Values)), nil
}

func (s *SheetsSink) service(ctx context.Context, dest Destination) (*sheets.Service, error) {
	if dest.SheetID == "" {
		return nil, ErrNoSheetID
	}
	if len(dest.Credentials) == 0 {
		return nil, ErrNoCredentials
	}
	svc, err := s.newService(ctx, dest.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}
	return svc, nil
}

func (s *SheetsSink) lock(dest Destination) func() {
	s.mu.Lock()
	l, ok := s.locks[dest.key()]
	if !ok {
		l = &sync.Mutex{}
		s.locks[dest.key()] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func ensureSchema(ctx context.Context, svc *sheets.Service, dest Destination) error {
	spreadsheet, err := svc.Spreadsheets.Get(dest.SheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	var tab *sheets.SheetProperties
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil && sh.Properties.Title == dest.SheetName {
			tab = sh.Properties
			break
		}
	}

	if tab == nil {
		_, err := svc.Spreadsheets.BatchUpdate(dest.SheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: dest.SheetName,
						GridProperties: &sheets.GridProperties{
							RowCount:    1,
							ColumnCount: int64(len(Header) + 1),
						},
					},
				},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to create sheet '%s': %w", dest.SheetName, err)
		}
		if err := writeHeader(ctx, svc, dest); err != nil {
			return err
		}
		slog.Info("Created new sheet with headers", "sheet", dest.SheetName)
		return nil
	}

	firstRow, err := svc.Spreadsheets.Values.Get(dest.SheetID, a1Range(dest.SheetName, "1:1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read header of sheet '%s': %w", dest.SheetName, err)
	}

	var existing []string
	if rows := toStrings(firstRow.Values); len(rows) > 0 {
		existing = rows[0]
	}
	if headerMatches(existing) {
		return nil
	}

	_, err = svc.Spreadsheets.BatchUpdate(dest.SheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			InsertDimension: &sheets.InsertDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         tab.SheetId,
					Dimension:       "ROWS",
					StartIndex:      0,
					EndIndex:        1,
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to insert header row into sheet '%s': %w", dest.SheetName, err)
	}
	if err := writeHeader(ctx, svc, dest); err != nil {
		return err
	}

	slog.Info("Added headers to existing sheet", "sheet", dest.SheetName)
	return nil
}

func writeHeader(ctx context.Context, svc *sheets.Service, dest Destination) error {
	_, err := svc.Spreadsheets.Values.Update(dest.SheetID, a1Range(dest.SheetName, "A1"), &sheets.ValueRange{
		Values: [][]any{toCells(Header)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to write header to sheet '%s': %w", dest.SheetName, err)
	}
	return nil
}

func headerMatches(row []string) bool {
	return slices.Equal(row, Header)
}

// commentIDs extracts the Comment ID column located through the header row.
func commentIDs(rows [][]string) []string {
	if len(rows) < 2 {
		return nil
	}
	idx := slices.Index(rows[0], commentIDColumn)
	if idx < 0 {
		return nil
	}

	ids := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if idx < len(row) && row[idx] != "" {
			ids = append(ids, row[idx])
		}
	}
	return ids
}

// a1Range quotes the tab name; cells may be empty to address the whole tab.
func a1Range(sheetName, cells string) string {
	quoted := "'" + strings.ReplaceAll(sheetName, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func toStrings(values [][]any) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			rows[i][j] = fmt.Sprint(cell)
		}
	}
	return rows
}
