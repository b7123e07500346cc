package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/midbel/cli"
	"github.com/midbel/xcore/xml"
	"github.com/midbel/xcore/xpath"
	"github.com/midbel/xcore/xslt"
)

var matchCmd = cli.Command{
	Name:    "match",
	Alias:   []string{"select"},
	Summary: "select the nodes of xml documents matching a pattern",
	Handler: &MatchCmd{},
}

var keysCmd = cli.Command{
	Name:    "keys",
	Summary: "index the nodes matching a pattern by the value of an expression",
	Handler: &KeysCmd{},
}

type MatchCmd struct {
	Text  bool
	Quiet bool
}

const matchInfo = "selection took %s - %d node(s) matching %s"

func (m *MatchCmd) Run(args []string) error {
	set := cli.NewFlagSet("match")
	set.BoolVar(&m.Text, "text", false, "print only value of nodes")
	set.BoolVar(&m.Quiet, "quiet", false, "suppress output - default is to print the matching nodes")
	if err := set.Parse(args); err != nil {
		return err
	}
	pattern, err := loadPattern(set.Arg(0))
	if err != nil {
		return err
	}
	var (
		files = set.Args()[1:]
		count int
		now   = time.Now()
	)
	for _, f := range files {
		doc, err := xml.ParseFile(f)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		seq, err := xslt.Select(nil, doc, pattern)
		if err != nil {
			return err
		}
		count += len(seq)
		if m.Quiet {
			continue
		}
		if len(files) > 1 {
			printFile(f)
		}
		printSequence(seq, m.Text)
	}
	printInfo(matchInfo, time.Since(now), count, pattern)
	if count == 0 {
		return errFail
	}
	return nil
}

type KeysCmd struct {
	Min string
	Max string
}

func (k *KeysCmd) Run(args []string) error {
	set := cli.NewFlagSet("keys")
	set.StringVar(&k.Min, "min", "", "lowest key printed")
	set.StringVar(&k.Max, "max", "\U0010FFFF", "highest key printed")
	if err := set.Parse(args); err != nil {
		return err
	}
	pattern, err := loadPattern(set.Arg(0))
	if err != nil {
		return err
	}
	var use Expr
	if err := decodeFile(set.Arg(1), &use); err != nil {
		return err
	}
	prog, err := compileExpr(&use)
	if err != nil {
		return err
	}
	doc, err := xml.ParseFile(set.Arg(2))
	if err != nil {
		return err
	}
	table, err := xslt.NewKeyTable(nil, set.Arg(1), pattern, prog, doc)
	if err != nil {
		return err
	}
	view := table.RangeMap(k.Min, k.Max)
	for key, nodes := range view.All() {
		var list []string
		for i := range nodes.Len() {
			list = append(list, formatItem(nodes.ItemAt(i), true))
		}
		fmt.Printf("%s: %s\n", kindStyle.Render(xpath.StringValue(key)), strings.Join(list, ", "))
	}
	printInfo("%d key(s) between %q and %q", view.Size(), k.Min, k.Max)
	return nil
}
