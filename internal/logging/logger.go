/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package logging

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	gologme "github.com/gologme/log"
)

// DefaultLevels are enabled when New is called without explicit levels.
var DefaultLevels = []string{"info", "warn", "error"}

// New returns a levelled logger whose prefix names the component in yellow.
func New(w io.Writer, component string, levels ...string) *gologme.Logger {
	yellow := color.New(color.FgYellow).SprintfFunc()
	l := gologme.New(w, fmt.Sprintf("[ %s ] ", yellow(component)), gologme.LstdFlags|gologme.Lmsgprefix)
	if len(levels) == 0 {
		levels = DefaultLevels
	}
	for _, level := range levels {
		l.EnableLevel(level)
	}
	return l
}

// Discard returns a logger that drops everything.
func Discard() *gologme.Logger {
	return gologme.New(io.Discard, "", 0)
}
