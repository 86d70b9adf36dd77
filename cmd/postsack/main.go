// Command postsack imports an email archive (mbox, Apple Mail, or Gmail
// Vault) into a local SQLite-compatible analytics store.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Napageneral/postsack/internal/config"
	"github.com/Napageneral/postsack/internal/importer"
	"github.com/Napageneral/postsack/internal/logging"
	"github.com/Napageneral/postsack/internal/progress"
	"github.com/Napageneral/postsack/internal/store"
)

var (
	verbose           bool
	databasePath      string
	overwriteDatabase bool
	senderEmails      []string
	metricsAddr       string
)

func main() {
	root := &cobra.Command{
		Use:   "postsack",
		Short: "Drill-down analytics over a local email archive",
	}

	importCmd := &cobra.Command{
		Use:   "import <email_format> <emails_folder>",
		Short: "Import an email archive into a local analytics store",
		Args:  cobra.ExactArgs(2),
		RunE:  runImport,
	}
	importCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	importCmd.Flags().StringVarP(&databasePath, "database", "s", "./postsack.sqlite", "path to the analytics database file")
	importCmd.Flags().BoolVarP(&overwriteDatabase, "overwrite-database", "f", false, "overwrite the database file if it already exists")
	importCmd.Flags().StringArrayVarP(&senderEmails, "sender-email", "e", nil, "an email address owned by the archive's account (repeatable)")
	importCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address for the duration of the import")

	root.AddCommand(importCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	logging.SetDefault(logging.New(logging.Config{Level: level, Pretty: true, Output: os.Stderr}))
	log := logging.Default().Component("cli")

	formatArg, folderArg := args[0], args[1]

	format, err := config.ParseFormatType(formatArg)
	if err != nil {
		return fmt.Errorf("parse email format: %w", err)
	}

	info, err := os.Stat(folderArg)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("emails folder %q is not accessible: %w", folderArg, err)
	}

	if _, err := os.Stat(databasePath); err == nil && !overwriteDatabase {
		return fmt.Errorf("database %q already exists; pass --overwrite-database to replace it", databasePath)
	}
	if overwriteDatabase {
		_ = os.Remove(databasePath)
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
		defer srv.Close()
		log.Info().Str("addr", metricsAddr).Msg("serving metrics")
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(folderArg); err != nil {
			log.Debug().Err(err).Msg("could not watch emails folder")
		}
	}

	s, err := store.Open(databasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer s.Close()

	cfg := config.Config{
		DatabasePath:     databasePath,
		EmailsFolderPath: folderArg,
		SenderEmails:     senderEmails,
		Format:           format,
		Persistent:       true,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watcher != nil {
		go watchFolder(ctx, watcher, folderArg, log)
	}

	events, results := importer.Run(ctx, s, cfg, importer.DefaultWorkers)

	adapter := progress.New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		adapter.Run(events)
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-done:
			break loop
		case <-ticker.C:
			printProgress(adapter)
		}
	}
	printProgress(adapter)
	fmt.Fprintln(os.Stderr)

	result := <-results
	if result.Err != nil {
		return fmt.Errorf("import failed: %w", result.Err)
	}

	fmt.Printf("imported %s messages (%s errors) into %s\n",
		humanize.Comma(int64(result.Inserted)), humanize.Comma(int64(result.Errors)), databasePath)
	return nil
}

func printProgress(adapter *progress.Adapter) {
	read := adapter.ReadCount()
	write := adapter.WriteCount()
	fmt.Fprintf(os.Stderr, "\rread %s/%s  written %s/%s   ",
		humanize.Comma(int64(read.Count)), humanize.Comma(int64(read.Total)),
		humanize.Comma(int64(write.Count)), humanize.Comma(int64(write.Total)))
}

// watchFolder logs a warning if the emails folder is removed or renamed
// out from under a long-running import. It does not stop the import.
func watchFolder(ctx context.Context, watcher *fsnotify.Watcher, folder string, log logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && ev.Name == folder {
				log.Warn().Str("folder", folder).Msg("emails folder was removed or renamed during import")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Debug().Err(err).Msg("watcher error")
		}
	}
}
