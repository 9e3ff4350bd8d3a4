package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Icons and symbols for different log types
const (
	IconSuccess = "✅"
	IconError   = "❌"
	IconWarning = "⚠️"
	IconInfo    = "ℹ️"
	IconRocket  = "🚀"
	IconConfig  = "⚙️"
	IconNetwork = "🌐"
	IconTime    = "⏱️"
	IconTarget  = "🎯"
	IconRelay   = "📡"
	IconFolder  = "📁"
	IconFile    = "📄"
	IconRefresh = "🔄"
	IconCheck   = "✓"
	IconCross   = "✗"
	IconDot     = "•"
	IconArrow   = "→"
)

var (
	sectionColor = color.New(color.FgCyan, color.Bold)
	ruleColor    = color.New(color.FgCyan)
	subColor     = color.New(color.FgHiBlack)
	keyColor     = color.New(color.FgCyan)

	// helperOut receives section banners, lists and tables.
	helperOut io.Writer = os.Stdout
)

func setHelperColor(enabled bool) {
	for _, c := range []*color.Color{sectionColor, ruleColor, subColor, keyColor, spinColor} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
}

// Success logs a success message with a green checkmark
func Success(args ...interface{}) {
	current().Info(IconSuccess + " " + fmt.Sprint(args...))
}

// Successf logs a formatted success message
func Successf(format string, args ...interface{}) {
	Success(fmt.Sprintf(format, args...))
}

// Progress logs a progress message with a refresh icon
func Progress(args ...interface{}) {
	current().Info(IconRefresh + " " + fmt.Sprint(args...))
}

// Progressf logs a formatted progress message
func Progressf(format string, args ...interface{}) {
	Progress(fmt.Sprintf(format, args...))
}

// Network logs a network-related message
func Network(args ...interface{}) {
	current().Info(IconNetwork + " " + fmt.Sprint(args...))
}

// Networkf logs a formatted network message
func Networkf(format string, args ...interface{}) {
	Network(fmt.Sprintf(format, args...))
}

// LogSection creates a visual section separator
func LogSection(title string) {
	line := strings.Repeat("=", 50)
	_, _ = ruleColor.Fprintln(helperOut, line)
	_, _ = sectionColor.Fprintln(helperOut, title)
	_, _ = ruleColor.Fprintln(helperOut, line)
}

// LogSubSection creates a visual subsection separator
func LogSubSection(title string) {
	line := strings.Repeat("-", 40)
	_, _ = subColor.Fprintln(helperOut, line)
	_, _ = subColor.Fprintln(helperOut, title)
	_, _ = subColor.Fprintln(helperOut, line)
}

// LogList logs a list of items with bullets
func LogList(title string, items []string) {
	Info(title)
	for _, item := range items {
		_, _ = fmt.Fprintf(helperOut, "  %s %s\n", IconDot, item)
	}
}

// LogKeyValue logs a key-value pair
func LogKeyValue(key string, value interface{}) {
	_, _ = fmt.Fprintf(helperOut, "%s %v\n", keyColor.Sprint(key+":"), value)
}

// LogKeyValues logs multiple key-value pairs in key order
func LogKeyValues(pairs map[string]interface{}) {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		LogKeyValue(k, pairs[k])
	}
}

// Table represents a simple table for logging
type Table struct {
	headers []string
	rows    [][]string
}

// NewTable creates a new table
func NewTable(headers ...string) *Table {
	return &Table{
		headers: headers,
		rows:    [][]string{},
	}
}

// AddRow adds a row to the table
func (t *Table) AddRow(values ...string) {
	t.rows = append(t.rows, values)
}

// Print writes the table to the helper output
func (t *Table) Print() {
	t.Fprint(helperOut)
}

// Fprint writes the table to w
func (t *Table) Fprint(w io.Writer) {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range t.headers {
		fmt.Fprintf(&b, "%-*s  ", widths[i], h)
	}
	b.WriteString("\n")
	for i := range t.headers {
		b.WriteString(strings.Repeat("-", widths[i]) + "  ")
	}
	b.WriteString("\n")
	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(widths) {
				fmt.Fprintf(&b, "%-*s  ", widths[i], cell)
			}
		}
		b.WriteString("\n")
	}
	_, _ = io.WriteString(w, b.String())
}
