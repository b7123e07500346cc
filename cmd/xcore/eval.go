package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/midbel/cli"
	"github.com/midbel/xcore/xml"
	"github.com/midbel/xcore/xpath"
)

var evalCmd = cli.Command{
	Name:    "eval",
	Alias:   []string{"exec"},
	Summary: "evaluate an expression tree against xml documents",
	Handler: &EvalCmd{},
}

var explainCmd = cli.Command{
	Name:    "explain",
	Summary: "print the compiled expression tree with its evaluation modes",
	Handler: &ExplainCmd{},
}

type CompileOptions struct {
	Params  []string
	Trace   bool
	Verbose bool
}

func (c *CompileOptions) register(set interface {
	BoolVar(*bool, string, bool, string)
	Func(string, string, func(string) error)
}) {
	set.BoolVar(&c.Trace, "trace", false, "trace compiler passes")
	set.BoolVar(&c.Verbose, "verbose", false, "log evaluation modes chosen by the compiler")
	set.Func("param", "supply a parameter as name=value", func(str string) error {
		if !strings.Contains(str, "=") {
			return fmt.Errorf("%s: name=value expected", str)
		}
		c.Params = append(c.Params, str)
		return nil
	})
}

func (c *CompileOptions) Options() []xpath.Option {
	var options []xpath.Option
	for _, p := range c.Params {
		name, value, _ := strings.Cut(p, "=")
		options = append(options, xpath.WithParam(name, xpath.Sequence{xpath.Untyped(value)}))
	}
	if c.Trace {
		options = append(options, xpath.WithTracer(xpath.TraceStderr()))
	}
	if c.Verbose {
		opts := slog.HandlerOptions{
			Level: slog.LevelDebug,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &opts))
		options = append(options, xpath.WithLogger(logger), xpath.WithListener(xpath.LogListener(logger)))
	}
	return options
}

type EvalCmd struct {
	Limit int
	Quiet bool
	Text  bool
	CompileOptions
}

const evalInfo = "evaluation took %s - %d item(s) for %d document(s)"

func (e *EvalCmd) Run(args []string) error {
	set := cli.NewFlagSet("eval")
	set.IntVar(&e.Limit, "limit", 0, "number of documents evaluated at the same time")
	set.BoolVar(&e.Quiet, "quiet", false, "suppress output - default is to print the resulting items")
	set.BoolVar(&e.Text, "text", false, "print only value of nodes")
	e.CompileOptions.register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	query, err := loadQuery(set.Arg(0))
	if err != nil {
		return err
	}
	prog, err := query.Compile(e.Options()...)
	if err != nil {
		return err
	}
	var (
		files = set.Args()[1:]
		now   = time.Now()
		res   []xpath.Sequence
	)
	if len(files) == 0 {
		seq, err := prog.Evaluate(prog.NewContext())
		if err != nil {
			return err
		}
		res = append(res, seq)
	} else {
		items := make([]xpath.Item, 0, len(files))
		for _, f := range files {
			doc, err := xml.ParseFile(f)
			if err != nil {
				return fmt.Errorf("%s: %w", f, err)
			}
			items = append(items, xpath.NewNode(doc))
		}
		if res, err = xpath.EvaluateAll(context.Background(), prog, items, e.Limit); err != nil {
			return err
		}
	}
	elapsed := time.Since(now)

	var count int
	for i, seq := range res {
		count += len(seq)
		if e.Quiet {
			continue
		}
		if len(files) > 1 {
			printFile(files[i])
		}
		printSequence(seq, e.Text)
	}
	printInfo(evalInfo, elapsed, count, len(files))
	if count == 0 {
		return errFail
	}
	return nil
}

type ExplainCmd struct {
	CompileOptions
}

func (e *ExplainCmd) Run(args []string) error {
	set := cli.NewFlagSet("explain")
	e.CompileOptions.register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	query, err := loadQuery(set.Arg(0))
	if err != nil {
		return err
	}
	prog, err := query.Compile(e.Options()...)
	if err != nil {
		return err
	}
	var str strings.Builder
	if err := xpath.Explain(&str, prog); err != nil {
		return err
	}
	printExplain(str.String())
	return nil
}
