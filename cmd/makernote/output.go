// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// useTable reports whether to render a table for the given output setting.
// In auto mode that is when w is a terminal.
func useTable(output string, w io.Writer) bool {
	switch output {
	case outputTable:
		return true
	case outputJSON:
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var reportHeaders = []string{"File", "Size", "Device UUID", "ISO", "Aperture", "Focal length", "Location", "Run time", "Segments", "Diagnostics"}

func renderReports(reports []fileReport) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(reportHeaders))
	for i, h := range reportHeaders {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, r := range reports {
		tw.AppendRow(reportRow(r))
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
		{Number: 10, Align: text.AlignRight},
	})

	return tw.Render()
}

func reportRow(r fileReport) table.Row {
	size := humanize.Bytes(uint64(r.Size))
	if r.MakerNote == nil {
		return table.Row{r.File, size, "error: " + r.Error, "", "", "", "", "", "", ""}
	}
	res := r.MakerNote

	var iso, aperture, focalLength, location, runTime string
	if res.Camera.ISO != nil {
		iso = strconv.Itoa(*res.Camera.ISO)
	}
	if res.Camera.Aperture != nil {
		aperture = fmt.Sprintf("f/%.1f", *res.Camera.Aperture)
	}
	if res.Camera.FocalLength != nil {
		focalLength = fmt.Sprintf("%.2f mm", *res.Camera.FocalLength)
	}
	if res.Location != nil {
		location = fmt.Sprintf("%.5f, %.5f (%s)", res.Location.Latitude, res.Location.Longitude, res.Location.Confidence)
	}
	if res.RunTime != nil {
		runTime = time.Duration(res.RunTime.Seconds() * float64(time.Second)).Round(time.Millisecond).String()
	}

	return table.Row{
		r.File,
		size,
		res.Device.UUID,
		iso,
		aperture,
		focalLength,
		location,
		runTime,
		strconv.Itoa(len(res.PropertyLists) + len(res.Directories)),
		strconv.Itoa(len(res.Diagnostics)),
	}
}
