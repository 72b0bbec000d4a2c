package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

func render(writer io.Writer, format string, results []result) error {
	switch format {
	case "yaml":
		encoder := yaml.NewEncoder(writer)
		defer encoder.Close()
		return encoder.Encode(results)
	default:
		renderTable(writer, results)
		return nil
	}
}

func renderTable(writer io.Writer, results []result) {
	t := table.NewWriter()
	t.SetOutputMirror(writer)
	t.AppendHeader(table.Row{"#", "State", "Status", "Bytes", "Duration", "Error"})
	for _, r := range results {
		status := "-"
		if r.Status > 0 {
			status = fmt.Sprint(r.Status)
		}
		t.AppendRow(table.Row{r.Index, r.State, status, r.Bytes, r.Duration.Round(time.Microsecond), r.Error})
	}

	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
