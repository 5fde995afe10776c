// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command minilisp is a thin command-line shell over the lisp package: a
// repl subcommand for interactive use and an eval subcommand for running a
// source file. Neither is part of the language core — the REPL driver is
// an external collaborator, not a language feature.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	lisp "github.com/uniot-io/go-minilisp"
)

var (
	heapBytes int
	alwaysGC  bool
	debugGC   bool
)

func main() {
	root := &cobra.Command{
		Use:   "minilisp",
		Short: "An embeddable Lisp interpreter",
	}
	root.PersistentFlags().IntVar(&heapBytes, "heap-bytes", 0, "GC semispace size in bytes (0 = default)")
	root.PersistentFlags().BoolVar(&alwaysGC, "always-gc", false, "force a collection on every allocation")
	root.PersistentFlags().BoolVar(&debugGC, "debug-gc", false, "log a summary line for every GC cycle")

	root.AddCommand(newReplCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newInterpreter() (*lisp.Interpreter, error) {
	return lisp.New(lisp.Options{
		HeapBytes: heapBytes,
		AlwaysGC:  alwaysGC,
		DebugGC:   debugGC,
		Out:       os.Stdout,
		Err:       os.Stderr,
	})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the interpreter's language version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("go-minilisp %d.%d.%d (#version %d)\n",
				lisp.VersionMajor, lisp.VersionMinor, lisp.VersionPatch, lisp.Version)
			return nil
		},
	}
}

func newEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval <file>",
		Short: "Evaluate a source file and print the final result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			it, err := newInterpreter()
			if err != nil {
				return err
			}
			defer it.Close()

			result, err := it.EvalSource(string(src))
			if err != nil {
				return err
			}
			fmt.Println(result)
			return nil
		},
	}
}
