// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	lisp "github.com/uniot-io/go-minilisp"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive read-eval-print loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			it, err := newInterpreter()
			if err != nil {
				return err
			}
			defer it.Close()
			return runRepl(it)
		},
	}
}

// runRepl reproduces original_source/repl.c's loop idiom — accumulate
// lines until parentheses balance, then eval and print — using
// chzyer/readline for the line source instead of bare fgets, so the user
// gets history and line editing for free.
func runRepl(it *lisp.Interpreter) error {
	rl, err := readline.New("minilisp> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	var buf strings.Builder
	for {
		prompt := "minilisp> "
		if buf.Len() > 0 {
			prompt = "......... "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				buf.Reset()
				continue
			}
			if err == io.EOF {
				return nil
			}
			return err
		}

		buf.WriteString(line)
		buf.WriteString("\n")

		if !balanced(buf.String()) {
			continue
		}

		src := buf.String()
		buf.Reset()
		if strings.TrimSpace(src) == "" {
			continue
		}

		result, err := it.EvalSource(src)
		if err != nil {
			fmt.Fprintln(rl.Stderr(), err)
			continue
		}
		fmt.Fprintln(rl.Stdout(), result)
	}
}

// balanced reports whether src has no unmatched open parenthesis outside
// of a string-free Lisp grammar with ; line comments — the repl's cue to
// stop accumulating lines and submit src for evaluation.
func balanced(src string) bool {
	depth := 0
	inComment := false
	for _, r := range src {
		switch {
		case inComment:
			if r == '\n' {
				inComment = false
			}
		case r == ';':
			inComment = true
		case r == '(':
			depth++
		case r == ')':
			depth--
		}
	}
	return depth <= 0
}
