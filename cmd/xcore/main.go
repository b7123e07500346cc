package main

import (
	"errors"
	"flag"
	"os"

	"github.com/midbel/cli"
)

var errFail = errors.New("fail")

const (
	summary = "xcore compiles and evaluates expression trees against xml documents"
	help    = ""
)

func main() {
	set := cli.NewFlagSet("xcore")
	if err := set.Parse(os.Args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		printError(err)
		os.Exit(2)
	}
	root := prepare()
	if set.NArg() == 0 {
		root.Help()
		os.Exit(2)
	}
	os.Exit(run(root, set.Args()))
}

// run executes the command and gives the exit code: 0 on success, 1 when
// the command fails or produces nothing.
func run(root *cli.CommandTrie, args []string) int {
	err := root.Execute(args)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFail):
		return 1
	default:
	}
	printError(err)
	var s cli.SuggestionError
	if errors.As(err, &s) {
		printSuggestions(s.Others)
	}
	return 1
}

func prepare() *cli.CommandTrie {
	root := cli.New()
	root.SetSummary(summary)
	root.SetHelp(help)

	root.Register([]string{"eval"}, &evalCmd)
	root.Register([]string{"exec"}, &evalCmd)
	root.Register([]string{"explain"}, &explainCmd)
	root.Register([]string{"merge"}, &mergeCmd)
	root.Register([]string{"match"}, &matchCmd)
	root.Register([]string{"select"}, &matchCmd)
	root.Register([]string{"keys"}, &keysCmd)
	return root
}
