/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JB-SelfCompany/attachmail/internal/attachment"
)

var listCmd = &cobra.Command{
	Use:   "list <file.eml>",
	Short: "List the attachments of a message",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := parseFile(args[0])
		if err != nil {
			return err
		}
		if len(m.Attachments()) == 0 {
			fmt.Println("No attachments.")
			return nil
		}

		header, rows, err := attachmentTable(m.Attachments())
		if err != nil {
			return err
		}
		bold := color.New(color.Bold).SprintFunc()
		_, err = fmt.Fprintf(os.Stdout, "%s\n%s", bold(header), rows)
		return err
	},
}

// attachmentTable aligns the columns before the header is coloured, so that
// escape codes do not count towards the column widths.
func attachmentTable(atts []*attachment.Attachment) (string, string, error) {
	var table bytes.Buffer
	w := tabwriter.NewWriter(&table, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PART\tNAME\tTYPE\tDECLARED\tSNIFFED\tEXT\tSIZE\tID")
	for _, a := range atts {
		sniffed, ok := a.MimeType()
		if !ok {
			sniffed = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			a.PartNumber(), a.Name(), a.Type(), a.ContentType(), sniffed, a.Extension(), a.Size(), a.ID())
	}
	if err := w.Flush(); err != nil {
		return "", "", err
	}
	header, rows, _ := strings.Cut(table.String(), "\n")
	return header, rows, nil
}

func init() {
	rootCmd.AddCommand(listCmd)
}
