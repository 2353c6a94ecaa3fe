package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/threatdocs/internal/logger"
)

// DefaultWatchSettle is how long a file must go unmodified before it is ingested.
const DefaultWatchSettle = 2 * time.Second

var watchSettle time.Duration

var watchCmd = withServices(&cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest PDFs as they appear in a directory",
	Long: `Watches a directory and ingests every PDF created or rewritten in it.
A file is picked up once it has not changed for the settle period, so
partially copied files are not read. Hidden files are ignored.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
})

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", DefaultWatchSettle, "quiet period before a file is ingested")
	rootCmd.AddCommand(watchCmd)
}

// settled is sent when a pending file's timer fires. gen identifies the
// timer, so a superseded timer is ignored.
type settled struct {
	path string
	gen  int
}

type pendingFile struct {
	timer *time.Timer
	gen   int
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	ctx := cmd.Context()
	ready := make(chan settled)
	pending := make(map[string]*pendingFile)
	gen := 0

	defer func() {
		for _, p := range pending {
			p.timer.Stop()
		}
	}()

	cmd.Printf("Watching %s for PDFs\n", dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			path := watchCandidate(event)
			if path == "" {
				continue
			}
			logger.Debug("watch: %s %s", event.Op, path)

			gen++
			if p, ok := pending[path]; ok {
				p.timer.Stop()
			}
			msg := settled{path: path, gen: gen}
			pending[path] = &pendingFile{
				gen: gen,
				timer: time.AfterFunc(watchSettle, func() {
					select {
					case ready <- msg:
					case <-ctx.Done():
					}
				}),
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)

		case s := <-ready:
			p, ok := pending[s.path]
			if !ok || p.gen != s.gen {
				continue
			}
			delete(pending, s.path)
			ingestOne(cmd, s.path, "")
		}
	}
}

// watchCandidate returns the event's path when it is a visible PDF file
// that was created or written, or "" otherwise.
func watchCandidate(event fsnotify.Event) string {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return ""
	}

	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return ""
	}

	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return ""
	}
	return event.Name
}
