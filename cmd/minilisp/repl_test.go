// Copyright 2026 The go-minilisp Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import "testing"

func TestBalanced(t *testing.T) {
	cases := []struct {
		src  string
		want bool
	}{
		{"", true},
		{"(+ 1 2)", true},
		{"(+ 1 2", false},
		{"(+ 1 2))", true},
		{"(+ 1\n   2)", true},
		{"; (unbalanced comment\n(+ 1 2)", true},
		{"(+ 1 ; trailing comment\n2)", true},
		{"()()", true},
	}
	for _, c := range cases {
		if got := balanced(c.src); got != c.want {
			t.Errorf("balanced(%q) = %v, want %v", c.src, got, c.want)
		}
	}
}
