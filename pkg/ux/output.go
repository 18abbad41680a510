// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides styled terminal output for the statewalk CLI. Styles
// degrade to plain text when stdout is not a terminal.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders
	ColorWarning     = lipgloss.Color("#F4D03F") // Gold/amber for warnings
	ColorError       = lipgloss.Color("#E74C3C") // Red for errors
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorTealBright),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Bold(true).Foreground(ColorError),
}

// Printer writes styled output, falling back to plain text when the
// destination is not a TTY.
type Printer struct {
	w     io.Writer
	plain bool
}

// NewPrinter creates a Printer for w. Styling is enabled only when w is an
// *os.File attached to a terminal.
func NewPrinter(w io.Writer) *Printer {
	plain := true
	if f, ok := w.(*os.File); ok {
		plain = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{w: w, plain: plain}
}

func (p *Printer) styled(s lipgloss.Style, text string) string {
	if p.plain {
		return text
	}
	return s.Render(text)
}

// Title prints a prominent heading.
func (p *Printer) Title(format string, args ...any) {
	fmt.Fprintln(p.w, p.styled(Styles.Title, fmt.Sprintf(format, args...)))
}

// Info prints a plain line.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Success prints a success line.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.styled(Styles.Success, fmt.Sprintf(format, args...)))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintln(p.w, p.styled(Styles.Warning, fmt.Sprintf(format, args...)))
}

// Error prints an error line.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintln(p.w, p.styled(Styles.Error, fmt.Sprintf(format, args...)))
}

// Muted prints a de-emphasized line.
func (p *Printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.w, p.styled(Styles.Muted, fmt.Sprintf(format, args...)))
}

// Writer exposes the underlying writer for raw output such as board
// renders.
func (p *Printer) Writer() io.Writer { return p.w }
