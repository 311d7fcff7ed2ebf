package frame

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// Render writes up to maxRows rows of f to w as a bordered table. maxRows <= 0
// renders every row.
func (f *Frame) Render(w io.Writer, maxRows int) {
	if len(f.Columns) == 0 {
		fmt.Fprintln(w, "Empty frame (no columns)")
		return
	}

	shown := f.Rows
	if maxRows > 0 && len(shown) > maxRows {
		shown = shown[:maxRows]
	}

	table := newTable(w)
	table.SetHeader(f.ColumnNames())
	for _, row := range shown {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		table.Append(cells)
	}
	table.Render()

	if len(f.Rows) > len(shown) {
		fmt.Fprintf(w, "... and %d more rows\n", len(f.Rows)-len(shown))
	}
}

// Info writes a per-column summary of f: position, name, non-null count and type.
func (f *Frame) Info(w io.Writer) {
	fmt.Fprintf(w, "%d rows x %d columns\n", f.NumRows(), f.NumCols())

	table := newTable(w)
	table.SetHeader([]string{"#", "Column", "Non-Null Count", "Type"})
	for i, c := range f.Columns {
		typ := c.Type
		if typ == "" {
			typ = "unknown"
		}
		table.Append([]string{
			strconv.Itoa(i),
			c.Name,
			fmt.Sprintf("%d non-null", f.NonNullCount(i)),
			typ,
		})
	}
	table.Render()
}

// Markdown writes f as a pipe-delimited markdown table.
func (f *Frame) Markdown(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	table.SetCenterSeparator("|")
	table.SetHeader(f.ColumnNames())
	for _, row := range f.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatValue(v)
		}
		table.Append(cells)
	}
	table.Render()
}

func newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(true)
	return table
}
