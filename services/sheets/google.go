package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/humanistchoir/members/core"
)

const maxTitleLen = 100

var titleReplacer = strings.NewReplacer("[", "(", "]", ")", ":", "-", "*", "", "?", "", "/", "-", `\`, "-")

// GoogleSheets writes each export to its own tab of one spreadsheet.
type GoogleSheets struct {
	srv           *gsheets.Service
	spreadsheetID string
}

var _ core.SheetWriter = (*GoogleSheets)(nil)

func NewGoogleSheets(ctx context.Context, conf *core.Config) (*GoogleSheets, error) {
	if conf.Sheets.AccountJSON == "" || conf.Sheets.SpreadsheetID == "" {
		return nil, errors.New("sheets export is not configured")
	}
	srv, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON([]byte(conf.Sheets.AccountJSON)),
		option.WithScopes(gsheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating sheets client")
	}
	return &GoogleSheets{srv: srv, spreadsheetID: conf.Sheets.SpreadsheetID}, nil
}

// SheetTitle turns title into a valid tab name.
func SheetTitle(title string) string {
	title = strings.TrimSpace(titleReplacer.Replace(title))
	if title == "" {
		title = "Export"
	}
	if r := []rune(title); len(r) > maxTitleLen {
		title = string(r[:maxTitleLen])
	}
	return title
}

func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func (gs *GoogleSheets) sheetID(ctx context.Context, title string) (int64, error) {
	ss, err := gs.srv.Spreadsheets.Get(gs.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, errors.Wrap(err, "getting spreadsheet")
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sh.Properties.SheetId, nil
		}
	}

	res, err := gs.srv.Spreadsheets.BatchUpdate(gs.spreadsheetID, &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{Properties: &gsheets.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, errors.Wrap(err, "adding sheet")
	}
	return res.Replies[0].AddSheet.Properties.SheetId, nil
}

func (gs *GoogleSheets) WriteSheet(ctx context.Context, title string, rows [][]string) (string, error) {
	title = SheetTitle(title)
	id, err := gs.sheetID(ctx, title)
	if err != nil {
		return "", err
	}

	rng := quote(title)
	if _, err = gs.srv.Spreadsheets.Values.Clear(gs.spreadsheetID, rng, &gsheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", errors.Wrap(err, "clearing sheet")
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	_, err = gs.srv.Spreadsheets.Values.Update(gs.spreadsheetID, rng+"!A1", &gsheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", errors.Wrap(err, "writing values")
	}
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit#gid=%d", gs.spreadsheetID, id), nil
}
