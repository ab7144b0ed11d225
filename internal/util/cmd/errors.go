// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package cmdutil

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Fatalf prints an error to stderr and exits.
func Fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// Check exits fatally if err is not nil.
func Check(err error) {
	if err != nil {
		Fatalf("%v", err)
	}
}

// Checkf exits fatally if err is not nil, prefixing the error with a message.
func Checkf(err error, format string, args ...any) {
	if err != nil {
		Fatalf(format+": %v", append(args, err)...)
	}
}

// Warnf prints a warning to stderr, in red when stderr is a terminal.
func Warnf(format string, args ...any) {
	msg := fmt.Sprintf("WARNING: "+format+"\n", args...)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		msg = color.RedString("%s", msg)
	}
	fmt.Fprint(os.Stderr, msg)
}
