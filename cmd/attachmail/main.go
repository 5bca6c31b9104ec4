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
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/JB-SelfCompany/attachmail/internal/attachment"
	"github.com/JB-SelfCompany/attachmail/internal/config"
	"github.com/JB-SelfCompany/attachmail/internal/logging"
	"github.com/JB-SelfCompany/attachmail/internal/message"
)

var (
	version = "dev"

	configPath string
	verbose    bool
	viewFlag   string

	log = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:           "attachmail",
	Short:         "Inspect and export email attachments",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		color.NoColor = !term.IsTerminal(int(os.Stderr.Fd()))

		levels := logging.DefaultLevels
		if verbose {
			levels = append([]string{"debug"}, levels...)
		}
		log = logging.New(os.Stderr, "attachmail", levels...)

		opts, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("config.Load: %w", err)
		}
		config.Set(opts)
		return nil
	},
}

// cliClient supplies the --view flag as the default attachment view.
type cliClient struct {
	view string
}

func (c cliClient) DefaultAttachmentView() string { return c.view }

func parseFile(path string) (*message.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer f.Close() // nolint:errcheck

	m, err := message.Parse(f,
		message.WithClient(cliClient{view: viewFlag}),
		message.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("message.Parse: %w", err)
	}
	if n := m.DecodeErrors(); n > 0 {
		log.Warnf("%s: %d parts failed to decode", path, n)
	}
	return m, nil
}

// findAttachment matches an identifier or a part number.
func findAttachment(m *message.Message, ref string) (*attachment.Attachment, error) {
	if a, ok := m.Attachment(ref); ok {
		return a, nil
	}
	for _, a := range m.Attachments() {
		if fmt.Sprint(a.PartNumber()) == ref {
			return a, nil
		}
	}
	return nil, fmt.Errorf("no attachment %q", ref)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (default $ATTACHMAIL_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&viewFlag, "view", "", "default attachment view")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}
