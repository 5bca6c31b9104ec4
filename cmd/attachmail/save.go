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
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JB-SelfCompany/attachmail/internal/attachment"
)

var saveCmd = &cobra.Command{
	Use:   "save <file.eml> <dir>",
	Short: "Save attachments to a directory",
	Long:  `Save every attachment, or only the one selected with --id, under its resolved name.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		idFlag, _ := cmd.Flags().GetString("id")
		nameFlag, _ := cmd.Flags().GetString("name")

		m, err := parseFile(args[0])
		if err != nil {
			return err
		}

		atts := m.Attachments()
		if idFlag != "" {
			a, err := findAttachment(m, idFlag)
			if err != nil {
				return err
			}
			atts = []*attachment.Attachment{a}
		} else if nameFlag != "" {
			return fmt.Errorf("--name requires --id")
		}

		failed := 0
		used := make(map[string]bool, len(atts))
		for _, a := range atts {
			name := nameFlag
			if name == "" {
				name = filepath.Base(a.Name())
			}
			// Later attachments resolving to a taken name get their part number.
			if used[name] {
				name = fmt.Sprintf("%d_%s", a.PartNumber(), name)
			}
			used[name] = true
			if !a.Save(args[1], name) {
				failed++
				continue
			}
			fmt.Printf("%s %s\n", color.GreenString("saved"), filepath.Join(args[1], name))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d attachments could not be saved", failed, len(atts))
		}
		return nil
	},
}

func init() {
	saveCmd.Flags().String("id", "", "attachment identifier or part number")
	saveCmd.Flags().String("name", "", "file name to save under")
	rootCmd.AddCommand(saveCmd)
}
