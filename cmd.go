package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose bool
	cfg     Config
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Single-page portfolio site",
	Long: `folio serves a one-page portfolio: hero, experience, skills, projects,
education and a contact form relayed to a form endpoint.

Run without a subcommand to start the web server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = LoadConfig()
		if err != nil {
			return err
		}
		logger, err = newLogger(cfg.LogLevel, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cfg, logger)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cfg, logger)
	},
}

// printNotices shows whatever is on the board when a one-shot command ends.
func printNotices(cmd *cobra.Command, board *NoticeBoard) {
	for _, n := range board.List() {
		prefix := "✓"
		if n.Destructive() {
			prefix = "✗"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", prefix, n.Title, n.Description)
	}
}

func channelArg(key string) (ContactChannel, error) {
	content, err := LoadContent(cfg.ContentPath)
	if err != nil {
		return ContactChannel{}, err
	}
	ch, ok := content.Channel(key)
	if !ok {
		return ContactChannel{}, errors.Errorf("unknown channel %q (see 'folio links')", key)
	}
	return ch, nil
}

var copyCmd = &cobra.Command{
	Use:   "copy <channel>",
	Short: "Copy a contact channel (email, phone, linkedin, github) to the clipboard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, err := channelArg(args[0])
		if err != nil {
			return err
		}
		board := NewNoticeBoard(NoticeTTL)
		defer board.Close()

		n := CopyChannel(ch, board, logger)
		printNotices(cmd, board)
		if n.Destructive() {
			return errors.Errorf("could not copy %s", ch.Label)
		}
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <channel>",
	Short: "Open a contact channel with the system handler",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, err := channelArg(args[0])
		if err != nil {
			return err
		}
		board := NewNoticeBoard(NoticeTTL)
		defer board.Close()

		_, err = OpenChannel(ch, board, logger)
		printNotices(cmd, board)
		return err
	},
}

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "List contact channels and footer links",
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := LoadContent(cfg.ContentPath)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHANNEL\tLABEL\tLINK")
		for _, ch := range content.Channels {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ch.Key, ch.Label, ch.MustHref())
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "GROUP\tLABEL\tACTION\tHREF")
		for _, g := range content.Footer {
			for _, l := range g.Links {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Group, l.Label, l.Action(), l.Href())
			}
		}
		return w.Flush()
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete visitor records older than VISITOR_RETENTION",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := OpenStore(cfg.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		NewAdmin(store, cfg, logger).Cleanup(context.Background(), cfg.VisitorRetention)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(serveCmd, copyCmd, openCmd, linksCmd, cleanupCmd)
}
