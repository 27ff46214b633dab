// SPDX-License-Identifier: MIT
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"audiomap/internal/platform"
	"audiomap/pkg/audiomap"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(f string) bool {
	return f == formatTable || f == formatJSON || f == formatYAML
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// encode writes v as JSON or YAML. It reports false for the table format.
func encode(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return true, enc.Encode(v)
	}
	return false, nil
}

func writeDevices(w io.Writer, format string, devices []audiomap.Device) error {
	if ok, err := encode(w, format, devices); ok {
		return err
	}
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "No audio devices found.")
		return err
	}

	t := newTable("NAME", "DIRECTION", "DEFAULT", "ID")
	for _, d := range devices {
		def := ""
		if d.IsDefault {
			def = "yes"
		}
		t.Row(d.Name, d.Direction.String(), def, d.ID)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func writeCounts(w io.Writer, format string, c audiomap.Counts) error {
	if ok, err := encode(w, format, c); ok {
		return err
	}
	t := newTable("INPUT", "OUTPUT", "TOTAL").
		Row(strconv.Itoa(c.Input), strconv.Itoa(c.Output), strconv.Itoa(c.Total))
	_, err := fmt.Fprintln(w, t.String())
	return err
}

type platformReport struct {
	platform.Info `yaml:",inline"`
	Backend       string `json:"backend" yaml:"backend"`
}

func writePlatform(w io.Writer, format string, r platformReport) error {
	if ok, err := encode(w, format, r); ok {
		return err
	}
	t := newTable("FIELD", "VALUE").
		Row("platform", r.Platform.String()).
		Row("backend", r.Backend).
		Row("os", r.OS).
		Row("family", r.Family).
		Row("version", r.Version).
		Row("kernel", r.KernelVersion+" "+r.KernelArch).
		Row("hostname", r.Hostname)
	if r.Virtualization != "" {
		t.Row("virtualization", r.Virtualization)
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}

type deviceDetails struct {
	audiomap.Device `yaml:",inline"`
	Details         audiomap.Details `json:"details" yaml:"details"`
}

func writeDetails(w io.Writer, format string, d audiomap.Device, details audiomap.Details) error {
	if ok, err := encode(w, format, deviceDetails{Device: d, Details: details}); ok {
		return err
	}

	t := newTable("FIELD", "VALUE").
		Row("name", d.Name).
		Row("id", d.ID).
		Row("direction", d.Direction.String()).
		Row("platform", d.Platform.String()).
		Row("is_default", strconv.FormatBool(d.IsDefault))

	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.Row(k, details[k])
	}
	_, err := fmt.Fprintln(w, t.String())
	return err
}
