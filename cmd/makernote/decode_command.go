// Copyright 2026 The wheresmy Authors
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/deanh/wheresmy/makernote"
	"github.com/hashicorp/go-hclog"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

// fileReport is the per file output.
// Exactly one of MakerNote and Error is set.
type fileReport struct {
	File      string            `json:"file"`
	Size      int64             `json:"size"`
	MakerNote *makernote.Result `json:"apple_makernote,omitempty"`
	Error     string            `json:"apple_makernote_error,omitempty"`
}

type decodeOptions struct {
	raw       bool
	byteOrder string
	jobs      int
}

func newDecodeCommand(ctx *commandContext) *cobra.Command {
	var opts decodeOptions

	cmd := &cobra.Command{
		Use:   "decode FILE...",
		Short: "Decode the Apple MakerNote of JPEG or TIFF images",
		Long: `Decode the Apple MakerNote of JPEG or TIFF images.

With --raw, each file is read as a MakerNote payload as extracted from the EXIF MakerNote tag.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := parseByteOrder(opts.byteOrder)
			if err != nil {
				return err
			}
			rules, err := ctx.cfg.rules()
			if err != nil {
				return err
			}

			d := &fileDecoder{
				raw:       opts.raw,
				byteOrder: order,
				rules:     rules,
				logger:    ctx.logger,
			}
			reports := d.decodeFiles(args, opts.jobs)

			out := cmd.OutOrStdout()
			if useTable(ctx.cfg.Output, out) {
				_, err = fmt.Fprintln(out, renderReports(reports))
				return err
			}
			return writeJSON(out, reports)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.raw, "raw", false, "Read files as raw MakerNote payloads")
	flags.StringVar(&opts.byteOrder, "byte-order", "big", "Byte order of the enclosing EXIF data in --raw mode (big or little)")
	flags.IntVarP(&opts.jobs, "jobs", "j", runtime.NumCPU(), "Number of files to decode in parallel")
	flags.StringP("output", "o", outputAuto, "Output format (auto, json or table)")
	ctx.v.BindPFlag("output", flags.Lookup("output"))

	return cmd
}

func parseByteOrder(s string) (binary.ByteOrder, error) {
	switch s {
	case "big", "be", "MM":
		return binary.BigEndian, nil
	case "little", "le", "II":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("invalid byte order %q", s)
	}
}

type fileDecoder struct {
	raw       bool
	byteOrder binary.ByteOrder
	rules     *makernote.Rules
	logger    hclog.Logger
}

// decodeFiles decodes the files using up to jobs goroutines.
// The reports are in the order of filenames.
func (d *fileDecoder) decodeFiles(filenames []string, jobs int) []fileReport {
	if jobs < 1 {
		jobs = 1
	}
	reports := make([]fileReport, len(filenames))
	p := pool.New().WithMaxGoroutines(jobs)
	for i, filename := range filenames {
		i, filename := i, filename
		p.Go(func() {
			reports[i] = d.decodeFile(filename)
		})
	}
	p.Wait()
	return reports
}

func (d *fileDecoder) decodeFile(filename string) fileReport {
	report := fileReport{File: filename}
	logger := d.logger.With("file", filename)

	b, err := os.ReadFile(filename)
	if err != nil {
		logger.Error("read failed", "error", err)
		report.Error = err.Error()
		return report
	}
	report.Size = int64(len(b))

	data, order := b, d.byteOrder
	if !d.raw {
		data, order, err = readMakerNote(bytes.NewReader(b))
		if err != nil {
			logger.Info("no MakerNote", "error", err)
			report.Error = err.Error()
			return report
		}
	}

	res := makernote.Decode(makernote.Options{
		Data:      data,
		ByteOrder: order,
		Rules:     d.rules,
		Warnf: func(format string, args ...any) {
			logger.Warn(fmt.Sprintf(format, args...))
		},
	})
	logger.Debug("decoded", "result", res.String())
	report.MakerNote = &res
	return report
}

var errNoMakerNote = errors.New("no MakerNote tag")

// readMakerNote returns the MakerNote payload and the byte order of the EXIF data in r.
func readMakerNote(r io.Reader) ([]byte, binary.ByteOrder, error) {
	x, err := exif.Decode(r)
	if x == nil {
		return nil, nil, fmt.Errorf("read EXIF: %w", err)
	}
	tag, err := x.Get(exif.MakerNote)
	if err != nil {
		var notPresent exif.TagNotPresentError
		if errors.As(err, &notPresent) {
			return nil, nil, errNoMakerNote
		}
		return nil, nil, err
	}
	return tag.Val, x.Tiff.Order, nil
}
