package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/midbel/xcore/xml"
	"github.com/midbel/xcore/xpath"
)

var (
	fileStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	modeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	infoStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

func printError(err error) {
	lipgloss.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
}

func printSuggestions(names []string) {
	if len(names) == 0 {
		return
	}
	lipgloss.Fprintln(os.Stderr, infoStyle.Render("similar command(s):"))
	for _, n := range names {
		lipgloss.Fprintln(os.Stderr, " ", kindStyle.Render(n))
	}
}

func printInfo(format string, args ...any) {
	lipgloss.Fprintln(os.Stdout, infoStyle.Render(fmt.Sprintf(format, args...)))
}

func printFile(file string) {
	lipgloss.Fprintln(os.Stdout, fileStyle.Render(file))
}

func printSequence(seq xpath.Sequence, text bool) {
	for _, it := range seq {
		fmt.Fprintln(os.Stdout, formatItem(it, text))
	}
}

func formatItem(it xpath.Item, text bool) string {
	if n := it.Node(); n != nil {
		if text {
			return n.Value()
		}
		return xml.WriteNode(n)
	}
	switch it.(type) {
	case xpath.MapItem, *xpath.ArrayItem:
		buf, err := json.MarshalIndent(toJSON(it), "", "  ")
		if err != nil {
			return err.Error()
		}
		return string(buf)
	default:
		return xpath.StringValue(it)
	}
}

// toJSON converts an item to a value that encoding/json can write.
func toJSON(it xpath.Item) any {
	switch it := it.(type) {
	case xpath.MapItem:
		obj := make(map[string]any)
		for k, v := range it.All() {
			obj[xpath.StringValue(k)] = groundedJSON(v)
		}
		return obj
	case *xpath.ArrayItem:
		list := []any{}
		for m := range it.Members() {
			list = append(list, groundedJSON(m))
		}
		return list
	default:
		if n := it.Node(); n != nil {
			return xml.WriteNode(n)
		}
		return it.Value()
	}
}

func groundedJSON(v xpath.Grounded) any {
	switch v.Len() {
	case 0:
		return nil
	case 1:
		return toJSON(v.ItemAt(0))
	default:
		list := make([]any, 0, v.Len())
		for i := range v.Len() {
			list = append(list, toJSON(v.ItemAt(i)))
		}
		return list
	}
}

// printExplain highlights the output of xpath.Explain: headers, kinds of
// expressions and evaluation modes.
func printExplain(str string) {
	for _, line := range strings.Split(strings.TrimRight(str, "\n"), "\n") {
		if !strings.HasPrefix(line, " ") {
			lipgloss.Fprintln(os.Stdout, headerStyle.Render(line))
			continue
		}
		var (
			rest   = strings.TrimLeft(line, " ")
			indent = line[:len(line)-len(rest)]
			fields = strings.Fields(rest)
		)
		for i, f := range fields {
			switch {
			case i == 0:
				fields[i] = kindStyle.Render(f)
			case strings.HasPrefix(f, "mode="), strings.HasPrefix(f, "arg"), f == "shared-append", strings.HasSuffix(f, "tail-call"):
				fields[i] = modeStyle.Render(f)
			default:
			}
		}
		lipgloss.Fprintln(os.Stdout, indent+strings.Join(fields, " "))
	}
}
