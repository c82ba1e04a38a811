// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux renders CLI output: styled for terminals, plain tab-separated
// lines for pipes, or JSON on request.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Workgraph palette, deep teals.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
	Cell    lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Header:  lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	Cell: lipgloss.NewStyle().PaddingRight(2),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
)

// Render returns the icon with its color.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Mode selects the output format.
type Mode string

const (
	// ModeRich styles output for a human at a terminal.
	ModeRich Mode = "rich"

	// ModePlain writes tab-separated lines for scripts.
	ModePlain Mode = "plain"

	// ModeJSON writes one JSON document per call.
	ModeJSON Mode = "json"
)

// ParseMode accepts "rich", "plain", "json", "text" (plain) and "" (auto).
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "rich", "table":
		return ModeRich, true
	case "plain", "text", "tsv":
		return ModePlain, true
	case "json":
		return ModeJSON, true
	default:
		return "", false
	}
}

// DetectMode returns ModeRich when f is a terminal and ModePlain otherwise.
func DetectMode(f *os.File) Mode {
	if f == nil {
		return ModePlain
	}
	fd := f.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return ModeRich
	}
	return ModePlain
}

// Printer writes formatted output in one Mode.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	out  io.Writer
	errW io.Writer
	mode Mode
}

// NewPrinter creates a printer. An empty mode is detected from stdout.
func NewPrinter(out, errW io.Writer, mode Mode) *Printer {
	if mode == "" {
		mode = ModePlain
		if f, ok := out.(*os.File); ok {
			mode = DetectMode(f)
		}
	}
	if errW == nil {
		errW = out
	}
	return &Printer{out: out, errW: errW, mode: mode}
}

// Mode returns the printer's mode.
func (p *Printer) Mode() Mode {
	return p.mode
}

// Title prints a heading. Suppressed outside rich mode.
func (p *Printer) Title(text string) {
	if p.mode != ModeRich {
		return
	}
	fmt.Fprintln(p.out, Styles.Title.Render(text))
}

// Success reports a completed operation.
func (p *Printer) Success(text string) {
	switch p.mode {
	case ModeRich:
		fmt.Fprintf(p.out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	case ModeJSON:
		p.JSON(map[string]string{"status": "ok", "message": text})
	default:
		fmt.Fprintf(p.out, "OK: %s\n", text)
	}
}

// Warning reports a non-fatal problem on the error stream.
func (p *Printer) Warning(text string) {
	if p.mode == ModeRich {
		fmt.Fprintf(p.errW, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
		return
	}
	fmt.Fprintf(p.errW, "WARN: %s\n", text)
}

// Error reports a failure on the error stream.
func (p *Printer) Error(text string) {
	if p.mode == ModeRich {
		fmt.Fprintf(p.errW, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
		return
	}
	fmt.Fprintf(p.errW, "ERROR: %s\n", text)
}

// Muted prints secondary text in rich mode only.
func (p *Printer) Muted(text string) {
	if p.mode != ModeRich {
		return
	}
	fmt.Fprintln(p.out, Styles.Muted.Render(text))
}

// Box prints a titled box in rich mode and "title: content" otherwise.
func (p *Printer) Box(title, content string) {
	if p.mode != ModeRich {
		fmt.Fprintf(p.out, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.out, Styles.Box.Render(Styles.Title.Render(title)+"\n"+content))
}

// Table prints rows under headers.
//
// Rich mode pads columns to the widest cell and styles the header. Plain
// mode writes one tab-separated line per row with no header. JSON mode
// writes an array of header-keyed objects.
func (p *Printer) Table(headers []string, rows [][]string) {
	switch p.mode {
	case ModeJSON:
		out := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			obj := make(map[string]string, len(headers))
			for i, h := range headers {
				if i < len(row) {
					obj[h] = row[i]
				}
			}
			out = append(out, obj)
		}
		p.JSON(out)
	case ModeRich:
		widths := make([]int, len(headers))
		for i, h := range headers {
			widths[i] = lipgloss.Width(h)
		}
		for _, row := range rows {
			for i := 0; i < len(row) && i < len(widths); i++ {
				if w := lipgloss.Width(row[i]); w > widths[i] {
					widths[i] = w
				}
			}
		}
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = Styles.Cell.Width(widths[i] + 2).Render(Styles.Header.Render(h))
		}
		fmt.Fprintln(p.out, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		for _, row := range rows {
			cells = cells[:0]
			for i := range headers {
				v := ""
				if i < len(row) {
					v = row[i]
				}
				cells = append(cells, Styles.Cell.Width(widths[i]+2).Render(v))
			}
			fmt.Fprintln(p.out, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		}
	default:
		for _, row := range rows {
			fmt.Fprintln(p.out, strings.Join(row, "\t"))
		}
	}
}

// JSON writes v as indented JSON.
func (p *Printer) JSON(v any) {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(p.errW, "ERROR: encode output: %v\n", err)
	}
}
