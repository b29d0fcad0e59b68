package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format.
const (
	TableFormatCSV     = "csv"
	TableFormatJSON    = "json"
	TableFormatTable   = "table"
	TableFormatYAML    = "yaml"
	TableFormatCompact = "compact"
)

const (
	// TableOptionNoHeader hides the table header when possible.
	TableOptionNoHeader = "noheader"

	// TableOptionHeader adds header to csv.
	TableOptionHeader = "header"
)

// renderTable renders rows in the requested format. json and yaml encode raw
// instead of the rows. A format may carry options after a comma, as in
// "csv,header".
func renderTable(w io.Writer, format string, header []string, data [][]string, raw any) error {
	fields := strings.SplitN(format, ",", 2)
	format = fields[0]

	var options []string
	if len(fields) == 2 {
		options = strings.Split(fields[1], ",")
		if slices.Contains(options, TableOptionNoHeader) {
			header = nil
		}
	}

	switch format {
	case TableFormatTable:
		table := baseTable(w, header, data)
		table.SetRowLine(true)
		table.Render()
	case TableFormatCompact:
		table := baseTable(w, header, data)
		table.SetColumnSeparator("")
		table.SetHeaderLine(false)
		table.SetBorder(false)
		table.Render()
	case TableFormatCSV:
		cw := csv.NewWriter(w)
		if slices.Contains(options, TableOptionHeader) {
			if err := cw.Write(header); err != nil {
				return err
			}
		}
		if err := cw.WriteAll(data); err != nil {
			return err
		}
		return cw.Error()
	case TableFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(raw)
	case TableFormatYAML:
		out, err := yaml.Marshal(raw)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("invalid format %q", format)
	}
	return nil
}

func baseTable(w io.Writer, header []string, data [][]string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	table.AppendBulk(data)
	return table
}

// validateFormat checks a --format value before any work is done.
func validateFormat(value string) error {
	fields := strings.SplitN(value, ",", 2)

	if len(fields) == 2 {
		for _, option := range strings.Split(fields[1], ",") {
			switch option {
			case TableOptionNoHeader, TableOptionHeader, "":
			default:
				return fmt.Errorf("invalid modifier %q on flag --format (%q)", option, value)
			}
		}
	}

	switch fields[0] {
	case TableFormatCSV, TableFormatJSON, TableFormatTable, TableFormatYAML, TableFormatCompact:
	default:
		return fmt.Errorf("invalid value %q for flag --format", fields[0])
	}
	return nil
}

// joinSet renders a set column; empty sets show as "-".
func joinSet(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
