package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// TableFormatter builds a text table
type TableFormatter interface {
	SetHeaders(headers []string)
	AddRow(row []string)
	AddColoredRow(row []string, clr Color)
	AddSeparator()
	SetColumnAlignment(column int, alignment Alignment)
	SetStyle(style TableStyle)
	SetMaxWidth(width int)
	Render() string
	RenderTo(writer io.Writer)
}

// Alignment represents column alignment options
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// TableStyle defines the visual style of a table
type TableStyle struct {
	Name            string
	BorderStyle     BorderStyle
	HeaderSeparator bool
	RowSeparator    bool
	Padding         int
}

// BorderStyle defines table border characters
type BorderStyle struct {
	TopLeft     string
	TopRight    string
	BottomLeft  string
	BottomRight string
	Horizontal  string
	Vertical    string
	Cross       string
	TopTee      string
	BottomTee   string
	LeftTee     string
	RightTee    string
}

var (
	ASCIIBorderStyle = BorderStyle{
		TopLeft: "+", TopRight: "+", BottomLeft: "+", BottomRight: "+",
		Horizontal: "-", Vertical: "|", Cross: "+",
		TopTee: "+", BottomTee: "+", LeftTee: "+", RightTee: "+",
	}

	RoundedBorderStyle = BorderStyle{
		TopLeft: "╭", TopRight: "╮", BottomLeft: "╰", BottomRight: "╯",
		Horizontal: "─", Vertical: "│", Cross: "┼",
		TopTee: "┬", BottomTee: "┴", LeftTee: "├", RightTee: "┤",
	}

	NoBorderStyle = BorderStyle{}
)

var (
	DefaultTableStyle = TableStyle{Name: "default", BorderStyle: ASCIIBorderStyle, HeaderSeparator: true, Padding: 1}
	RoundedTableStyle = TableStyle{Name: "rounded", BorderStyle: RoundedBorderStyle, HeaderSeparator: true, Padding: 1}
	CompactTableStyle = TableStyle{Name: "compact", BorderStyle: NoBorderStyle, Padding: 1}
	GridTableStyle    = TableStyle{Name: "grid", BorderStyle: ASCIIBorderStyle, HeaderSeparator: true, RowSeparator: true, Padding: 1}
)

var tableStyles = map[string]TableStyle{
	DefaultTableStyle.Name: DefaultTableStyle,
	RoundedTableStyle.Name: RoundedTableStyle,
	CompactTableStyle.Name: CompactTableStyle,
	GridTableStyle.Name:    GridTableStyle,
}

// GetTableStyleByName returns a table style by name, falling back to default
func GetTableStyleByName(name string) TableStyle {
	if style, ok := tableStyles[name]; ok {
		return style
	}
	return DefaultTableStyle
}

type tableFormatter struct {
	headers     []string
	rows        [][]string
	rowColors   map[int]Color
	separators  map[int]bool
	alignments  map[int]Alignment
	style       TableStyle
	maxWidth    int
	colorSystem ColorSystem
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(colorSystem ColorSystem) TableFormatter {
	return &tableFormatter{
		rowColors:   make(map[int]Color),
		separators:  make(map[int]bool),
		alignments:  make(map[int]Alignment),
		style:       DefaultTableStyle,
		colorSystem: colorSystem,
	}
}

func (tf *tableFormatter) SetHeaders(headers []string) {
	tf.headers = headers
}

func (tf *tableFormatter) AddRow(row []string) {
	tf.rows = append(tf.rows, row)
}

// AddColoredRow adds a row whose cells are all rendered in clr
func (tf *tableFormatter) AddColoredRow(row []string, clr Color) {
	tf.rowColors[len(tf.rows)] = clr
	tf.rows = append(tf.rows, row)
}

// AddSeparator adds a separator after the current row
func (tf *tableFormatter) AddSeparator() {
	tf.separators[len(tf.rows)] = true
}

func (tf *tableFormatter) SetColumnAlignment(column int, alignment Alignment) {
	tf.alignments[column] = alignment
}

func (tf *tableFormatter) SetStyle(style TableStyle) {
	tf.style = style
}

// SetMaxWidth limits the rendered width; 0 means unlimited
func (tf *tableFormatter) SetMaxWidth(width int) {
	tf.maxWidth = width
}

// Render returns the formatted table as a string
func (tf *tableFormatter) Render() string {
	if len(tf.headers) == 0 && len(tf.rows) == 0 {
		return ""
	}

	widths := tf.adjustForMaxWidth(tf.calculateColumnWidths())
	border := tf.style.BorderStyle

	var result strings.Builder
	if border.Horizontal != "" {
		result.WriteString(tf.renderBorder(widths, border.TopLeft, border.TopTee, border.TopRight))
	}

	if len(tf.headers) > 0 {
		result.WriteString(tf.renderRow(tf.headers, widths, tf.primary()))
		if tf.style.HeaderSeparator && border.Horizontal != "" {
			result.WriteString(tf.renderBorder(widths, border.LeftTee, border.Cross, border.RightTee))
		}
	}

	for i, row := range tf.rows {
		clr := ColorReset
		if c, ok := tf.rowColors[i]; ok {
			clr = c
		}
		result.WriteString(tf.renderRow(row, widths, clr))

		last := i == len(tf.rows)-1
		if !last && border.Horizontal != "" && (tf.style.RowSeparator || tf.separators[i+1]) {
			result.WriteString(tf.renderBorder(widths, border.LeftTee, border.Cross, border.RightTee))
		}
	}

	if border.Horizontal != "" {
		result.WriteString(tf.renderBorder(widths, border.BottomLeft, border.BottomTee, border.BottomRight))
	}
	return result.String()
}

// RenderTo renders the table to the specified writer
func (tf *tableFormatter) RenderTo(writer io.Writer) {
	fmt.Fprint(writer, tf.Render())
}

func (tf *tableFormatter) primary() Color {
	if tf.colorSystem == nil {
		return ColorReset
	}
	return tf.colorSystem.Theme().Primary
}

func (tf *tableFormatter) columnCount() int {
	n := len(tf.headers)
	for _, row := range tf.rows {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}

func (tf *tableFormatter) calculateColumnWidths() []int {
	widths := make([]int, tf.columnCount())
	measure := func(row []string) {
		for i, cell := range row {
			if w := utf8.RuneCountInString(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	measure(tf.headers)
	for _, row := range tf.rows {
		measure(row)
	}

	for i := range widths {
		widths[i] += tf.style.Padding * 2
	}
	return widths
}

// adjustForMaxWidth shrinks the widest columns first until the table fits
func (tf *tableFormatter) adjustForMaxWidth(widths []int) []int {
	if tf.maxWidth <= 0 || len(widths) == 0 {
		return widths
	}

	minWidth := tf.style.Padding*2 + 4
	for tf.totalWidth(widths) > tf.maxWidth {
		widest := 0
		for i := range widths {
			if widths[i] > widths[widest] {
				widest = i
			}
		}
		if widths[widest] <= minWidth {
			break
		}
		widths[widest]--
	}
	return widths
}

func (tf *tableFormatter) totalWidth(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w
	}
	if tf.style.BorderStyle.Vertical != "" {
		total += len(widths) + 1
	}
	return total
}

func (tf *tableFormatter) renderBorder(widths []int, left, middle, right string) string {
	var b strings.Builder
	b.WriteString(left)
	for i, w := range widths {
		b.WriteString(strings.Repeat(tf.style.BorderStyle.Horizontal, w))
		if i < len(widths)-1 {
			b.WriteString(middle)
		}
	}
	b.WriteString(right)
	b.WriteString("\n")
	return b.String()
}

func (tf *tableFormatter) renderRow(row []string, widths []int, clr Color) string {
	vertical := tf.style.BorderStyle.Vertical

	var b strings.Builder
	b.WriteString(vertical)
	for i, w := range widths {
		var cell string
		if i < len(row) {
			cell = row[i]
		}
		b.WriteString(tf.formatCell(cell, w, tf.alignments[i], clr))
		if vertical != "" || i < len(widths)-1 {
			b.WriteString(vertical)
		}
	}
	return strings.TrimRight(b.String(), " ") + "\n"
}

// formatCell pads and aligns content to width. Color is applied after
// padding so escape sequences do not count towards the width.
func (tf *tableFormatter) formatCell(content string, width int, alignment Alignment, clr Color) string {
	contentWidth := width - tf.style.Padding*2
	if contentWidth < 0 {
		contentWidth = 0
	}

	if utf8.RuneCountInString(content) > contentWidth {
		runes := []rune(content)
		if contentWidth > 3 {
			content = string(runes[:contentWidth-3]) + "..."
		} else {
			content = string(runes[:contentWidth])
		}
	}

	totalPadding := contentWidth - utf8.RuneCountInString(content)
	var leftPad, rightPad int
	switch alignment {
	case AlignCenter:
		leftPad = totalPadding / 2
		rightPad = totalPadding - leftPad
	case AlignRight:
		leftPad = totalPadding
	default:
		rightPad = totalPadding
	}
	leftPad += tf.style.Padding
	rightPad += tf.style.Padding

	if tf.colorSystem != nil {
		content = tf.colorSystem.Colorize(content, clr)
	}
	return strings.Repeat(" ", leftPad) + content + strings.Repeat(" ", rightPad)
}

// terminalWidth returns the width of w when it is a terminal
func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 0, false
	}
	return width, true
}
