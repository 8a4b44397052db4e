package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	keyStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

func render[T any](w io.Writer, format string, value T, text func(T) string) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetEscapeHTML(false)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	}
	_, err := fmt.Fprintln(w, text(value))
	return err
}

func renderFields(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	width := 0
	for key := range fields {
		keys = append(keys, key)
		width = max(width, len(key))
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		label := keyStyle.Render(fmt.Sprintf("%-*s", width, key))
		lines = append(lines, label+"  "+styleValue(key, fields[key]))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func styleValue(key string, value any) string {
	switch typed := value.(type) {
	case bool:
		if typed {
			return okStyle.Render("true")
		}
		return errorStyle.Render("false")
	case string:
		if key == "error" {
			return errorStyle.Render(typed)
		}
		if key == "status" && typed == "ok" {
			return okStyle.Render(typed)
		}
		return typed
	case float64:
		return fmt.Sprintf("%g", typed)
	default:
		serialized, _ := json.Marshal(typed)
		return string(serialized)
	}
}

func renderDisplays(results []any) string {
	lines := []string{sectionStyle.Render(fmt.Sprintf("%d covenant(s)", len(results)))}
	for i, item := range results {
		entry, _ := item.(map[string]any)
		display, _ := entry["display"].(string)
		index := mutedStyle.Render(fmt.Sprintf("%3d", i))
		lines = append(lines, index+"  "+stripLink(display))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// stripLink turns `ACTION <a href="/name/x">x</a>` into `ACTION x` for terminals.
func stripLink(display string) string {
	start := strings.Index(display, "<a ")
	if start < 0 {
		return display
	}
	open := strings.Index(display[start:], ">")
	end := strings.LastIndex(display, "</a>")
	if open < 0 || end < start+open {
		return display
	}
	return display[:start] + keyStyle.Render(display[start+open+1:end])
}
