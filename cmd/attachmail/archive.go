/*
 *  Copyright (c) 2021 Neil Alexander
 *
 *  This Source Code Form is subject to the terms of the Mozilla Public
 *  License, v. 2.0. If a copy of the MPL was not distributed with this
 *  file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JB-SelfCompany/attachmail/internal/archive"
	"github.com/JB-SelfCompany/attachmail/internal/config"
)

func openArchive(cmd *cobra.Command) (*archive.Archiver, error) {
	opts := config.Current()
	db, _ := cmd.Flags().GetString("db")
	store, _ := cmd.Flags().GetString("store")
	if db == "" {
		db = opts.Storage.Database
	}
	if store == "" {
		store = opts.Storage.FileStore
	}
	return archive.Open(db, store, log)
}

var archiveCmd = &cobra.Command{
	Use:   "archive <file.eml>...",
	Short: "Archive attachments into the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idFlag, _ := cmd.Flags().GetString("message-id")
		if idFlag != "" && len(args) > 1 {
			return fmt.Errorf("--message-id needs a single file")
		}

		a, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer a.Close() // nolint:errcheck

		incomplete := 0
		for _, path := range args {
			m, err := parseFile(path)
			if err != nil {
				return err
			}
			messageID := idFlag
			if messageID == "" {
				h := m.Header()
				messageID = strings.Trim(h.Get("Message-Id"), "<> ")
			}
			id, recs, err := a.Archive(messageID, m)
			switch {
			case errors.Is(err, archive.ErrIncomplete):
				fmt.Fprintf(os.Stderr, "%s %s: %v\n", color.YellowString("partial"), path, err)
				incomplete++
			case err != nil:
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s %s: %d attachments as %s\n", color.GreenString("archived"), path, len(recs), id)
		}
		if incomplete > 0 {
			return fmt.Errorf("%d of %d messages archived incompletely", incomplete, len(args))
		}
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog [message-id]",
	Short: "List archived attachments",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cleanup, _ := cmd.Flags().GetBool("cleanup")

		a, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer a.Close() // nolint:errcheck

		if cleanup {
			n, freed, err := a.Cleanup()
			if err != nil {
				return err
			}
			fmt.Printf("removed %d orphaned files (%d bytes)\n", n, freed)
		}

		messageID := ""
		if len(args) == 1 {
			messageID = args[0]
		}
		recs, err := a.Catalog.AttachmentList(messageID)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			fmt.Printf("%s\t%s\t%s\t%s\t%d\t%s\n", rec.MessageID, rec.ID, rec.Name, rec.SniffedType, rec.StoredSize, rec.File)
		}

		stats, err := a.Catalog.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("%d messages, %d attachments, %d bytes stored\n", stats.MessageCount, stats.AttachmentCount, stats.StoredSize)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{archiveCmd, catalogCmd} {
		cmd.Flags().String("db", "", "catalog database (default from config)")
		cmd.Flags().String("store", "", "attachment file store directory (default from config)")
		rootCmd.AddCommand(cmd)
	}
	archiveCmd.Flags().String("message-id", "", "identifier to archive under (default Message-Id header)")
	catalogCmd.Flags().Bool("cleanup", false, "remove stored files the catalog no longer references")
}
