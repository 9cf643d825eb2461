package sheets

import (
	"context"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/humanistchoir/members/core"
)

// Console renders exports as tables to w.
type Console struct {
	w io.Writer
}

var _ core.SheetWriter = (*Console)(nil)

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) WriteSheet(_ context.Context, title string, rows [][]string) (string, error) {
	title = SheetTitle(title)
	tw := table.NewWriter()
	tw.SetOutputMirror(c.w)
	tw.SetTitle(title)
	tw.SetStyle(table.StyleRounded)
	for i, row := range rows {
		r := make(table.Row, len(row))
		for j, cell := range row {
			r[j] = cell
		}
		if i == 0 {
			tw.AppendHeader(r)
		} else {
			tw.AppendRow(r)
		}
	}
	tw.Render()
	return "console://" + strings.ReplaceAll(title, " ", "_"), nil
}
