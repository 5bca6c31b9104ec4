/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JB-SelfCompany/attachmail/internal/attachment"
)

var showCmd = &cobra.Command{
	Use:   "show <file.eml> <id|part>",
	Short: "Present one attachment through a view",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := parseFile(args[0])
		if err != nil {
			return err
		}
		a, err := findAttachment(m, args[1])
		if err != nil {
			return err
		}

		v, err := a.Present("")
		if err != nil {
			return fmt.Errorf("%w (available: %s)", err, strings.Join(attachment.DefaultViews.Selectors(), ", "))
		}

		switch view := v.(type) {
		case *attachment.SummaryView:
			fmt.Println(view.String())
		case *attachment.AttachmentView:
			fmt.Println(view.ImageSrc())
		default:
			attrs := view.Attachment().AttributeMap()
			keys := make([]string, 0, len(attrs))
			for k := range attrs {
				if k != attachment.AttrContent {
					keys = append(keys, k)
				}
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s: %v\n", k, attrs[k])
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
