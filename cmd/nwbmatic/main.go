// Package main provides the nwbmatic CLI.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nwbmatic/nwbmatic"
)

const version = "v0.1.0-dev"

var (
	verbose bool
	tag     string
	force   bool
)

func newLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
}

func loadOptions() []nwbmatic.Option {
	opts := []nwbmatic.Option{nwbmatic.WithLogger(newLogger())}
	if tag != "" {
		opts = append(opts, nwbmatic.WithTag(tag))
	}
	if force {
		opts = append(opts, nwbmatic.WithForceReload())
	}
	return opts
}

func main() {
	root := &cobra.Command{
		Use:           "nwbmatic",
		Short:         "Load neuroscience recording sessions into normalized objects",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	formats := &cobra.Command{
		Use:   "formats",
		Short: "List the registered formats",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, t := range nwbmatic.Formats() {
				fmt.Println(t)
			}
		},
	}

	info := &cobra.Command{
		Use:   "info DIR",
		Short: "Detect a session's format without loading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := nwbmatic.DefaultRegistry()
			parser, err := reg.Resolve(tag, args[0])
			if err != nil {
				return err
			}
			manifest, err := parser.Manifest(args[0])
			if err != nil {
				return err
			}
			sort.Strings(manifest)
			fmt.Printf("format: %s\n", parser.Tag())
			fmt.Println("files:")
			for _, f := range manifest {
				fmt.Printf("  %s\n", f)
			}
			return nil
		},
	}
	info.Flags().StringVarP(&tag, "format", "f", "", "format tag (default: sniff)")

	load := &cobra.Command{
		Use:   "load DIR",
		Short: "Load a session and print a summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := nwbmatic.LoadSession(args[0], loadOptions()...)
			if err != nil {
				return err
			}
			printSummary(sess)
			return nil
		},
	}
	load.Flags().StringVarP(&tag, "format", "f", "", "format tag (default: sniff)")
	load.Flags().BoolVar(&force, "force", false, "ignore the cache artifact")

	cacheClear := &cobra.Command{
		Use:   "clear DIR",
		Short: "Remove a session's cache artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return nwbmatic.ClearCache(args[0])
		},
	}
	cache := &cobra.Command{
		Use:   "cache",
		Short: "Manage cache artifacts",
	}
	cache.AddCommand(cacheClear)

	watch := &cobra.Command{
		Use:   "watch DIR",
		Short: "Invalidate the cache artifact whenever a raw file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger().Level(zerolog.InfoLevel)
			w, err := nwbmatic.WatchDirectory(args[0], tag, nwbmatic.DefaultRegistry(), log)
			if err != nil {
				return err
			}
			defer w.Close()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return nil
		},
	}
	watch.Flags().StringVarP(&tag, "format", "f", "", "format tag (default: sniff)")

	root.AddCommand(formats, info, load, cache, watch)

	if err := root.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}

func printSummary(s *nwbmatic.Session) {
	fmt.Printf("session: %s\n", s.Name)
	fmt.Printf("format:  %s\n", s.Format)
	fmt.Printf("support: %.3fs over %d interval(s)\n",
		s.TimeSupport.TotalDuration(), s.TimeSupport.Len())
	fmt.Printf("units:   %d\n", s.Spikes.Len())
	if s.HasPosition() {
		fmt.Printf("position: %d samples x %d trace(s)\n",
			s.Position.Len(), len(s.Position.Columns()))
	}
	if s.HasTraces() {
		fmt.Printf("traces:  %d frames x %d cell(s)\n", s.C.Len(), len(s.C.Columns()))
	}
	if len(s.Epochs) > 0 {
		names := make([]string, 0, len(s.Epochs))
		for name := range s.Epochs {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("epochs:")
		for _, name := range names {
			ep := s.Epochs[name]
			fmt.Printf("  %-12s %d interval(s), %.3fs\n", name, ep.Len(), ep.TotalDuration())
		}
	}
	if len(s.Metadata) > 0 {
		names := make([]string, 0, len(s.Metadata))
		for name := range s.Metadata {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Println("metadata:")
		for _, name := range names {
			fmt.Printf("  %-24s %d row(s)\n", name, s.Metadata[name].Rows)
		}
	}
}

func printError(err error) {
	switch e := err.(type) {
	case *nwbmatic.UnknownFormatError:
		fmt.Fprintf(os.Stderr, "error: unknown format %q (known: %v)\n", e.Tag, e.Known)
	case *nwbmatic.ParseError:
		if e.File != "" {
			fmt.Fprintf(os.Stderr, "error: %s: %s: %v\n", e.Tag, e.File, e.Unwrap())
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}
