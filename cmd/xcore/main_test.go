package main

import (
	"errors"
	"testing"

	"github.com/midbel/cli"
)

type handlerFunc func([]string) error

func (h handlerFunc) Run(args []string) error {
	return h(args)
}

func TestRun(t *testing.T) {
	var (
		root = cli.New()
		ok   = cli.Command{Name: "ok", Handler: handlerFunc(func([]string) error { return nil })}
		fail = cli.Command{Name: "fail", Handler: handlerFunc(func([]string) error { return errFail })}
		bad  = cli.Command{Name: "bad", Handler: handlerFunc(func([]string) error { return errors.New("bad") })}
	)
	root.Register([]string{"ok"}, &ok)
	root.Register([]string{"fail"}, &fail)
	root.Register([]string{"bad"}, &bad)

	tests := []struct {
		Args []string
		Code int
	}{
		{Args: []string{"ok"}, Code: 0},
		{Args: []string{"fail"}, Code: 1},
		{Args: []string{"bad"}, Code: 1},
		{Args: []string{"oks"}, Code: 1},
	}
	for _, tt := range tests {
		if got := run(root, tt.Args); got != tt.Code {
			t.Errorf("%q: exit code mismatched! want %d, got %d", tt.Args, tt.Code, got)
		}
	}
}

func TestPrepare(t *testing.T) {
	root := prepare()
	if got := run(root, []string{"evl"}); got != 1 {
		t.Errorf("unknown command should fail, got %d", got)
	}
}
