package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"restopos/internal/config"
	"restopos/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const timestampLayout = "2006-01-02 15:04:05"

// SheetsService appends finished orders to a spreadsheet, one row per
// order line.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetRange    string
	loc           *time.Location
}

// NewSheetsService authenticates with a service account key file.
func NewSheetsService(ctx context.Context, cfg config.GoogleConfig, loc *time.Location) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwt, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	return NewSheetsServiceWithOptions(ctx, cfg.SpreadsheetID, cfg.SheetRange, loc, option.WithHTTPClient(jwt.Client(ctx)))
}

// NewSheetsServiceWithOptions builds the client from explicit options.
func NewSheetsServiceWithOptions(
	ctx context.Context,
	spreadsheetID, sheetRange string,
	loc *time.Location,
	opts ...option.ClientOption,
) (*SheetsService, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	if sheetRange == "" {
		sheetRange = "Sheet1!A:F"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetRange:    sheetRange,
		loc:           loc,
	}, nil
}

// TestConnection reads the first cell of the target range.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	sheet := s.sheetRange
	if i := strings.Index(sheet, "!"); i >= 0 {
		sheet = sheet[:i]
	}
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// ServiceAccountEmail returns the client_email of a key file, which is the
// address the spreadsheet must be shared with.
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

// AppendOrder writes the order's lines and returns the updated range. An
// order without lines is not sent; a synthetic "no-items-<unix>" id is
// returned instead.
func (s *SheetsService) AppendOrder(ctx context.Context, order *models.Order, items []models.OrderItem) (string, error) {
	if order == nil {
		return "", fmt.Errorf("order is nil")
	}
	if len(items) == 0 {
		return fmt.Sprintf("no-items-%d", time.Now().Unix()), nil
	}

	valueRange := &sheets.ValueRange{Values: orderRows(order, items, s.loc)}

	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.sheetRange, valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append order %d: %w", order.ID, err)
	}

	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return fmt.Sprintf("%d", time.Now().Unix()), nil
}

func orderRows(order *models.Order, items []models.OrderItem, loc *time.Location) [][]interface{} {
	created := order.CreatedAt.In(loc).Format(timestampLayout)
	rows := make([][]interface{}, 0, len(items))
	for _, item := range items {
		rows = append(rows, []interface{}{
			order.TableName,
			item.MenuItemName,
			item.Quantity,
			item.UnitPrice,
			item.TotalPrice,
			created,
		})
	}
	return rows
}
