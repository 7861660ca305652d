package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	ragprep "github.com/nicholasgasior/ragprep-go"
)

// settleDelay is how long a file must stay quiet before it is converted.
const settleDelay = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch <input-dir> <output-dir>",
	Short: "Convert files as they appear in a folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		suffix, _ := cmd.Flags().GetString("suffix")
		settle, _ := cmd.Flags().GetDuration("settle")

		p := newPrinter(os.Stdout)
		conv, err := newConverter(p)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(args[1], 0o755); err != nil {
			return err
		}
		unlock, err := conv.LockOutput(args[1])
		if err != nil {
			return err
		}
		defer unlock()

		w := &folderWatcher{conv: conv, printer: p, output: args[1], suffix: suffix, settle: settle}
		return w.run(cmd.Context(), args[0])
	},
}

func init() {
	watchCmd.Flags().String("suffix", "", "suffix appended to every package name")
	watchCmd.Flags().Duration("settle", settleDelay, "quiet period before a changed file is converted")

	rootCmd.AddCommand(watchCmd)
}

// folderWatcher debounces fsnotify events per file and converts settled
// files one at a time.
type folderWatcher struct {
	conv    *ragprep.Converter
	printer *printer
	output  string
	suffix  string
	settle  time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string
	done   chan struct{}
}

func (w *folderWatcher) run(ctx context.Context, input string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(input); err != nil {
		return fmt.Errorf("failed to watch %s: %w", input, err)
	}
	w.timers = make(map[string]*time.Timer)
	w.ready = make(chan string)
	w.done = make(chan struct{})

	var wg sync.WaitGroup
	wg.Go(func() {
		for {
			select {
			case <-w.done:
				return
			case path := <-w.ready:
				w.convert(ctx, path)
			}
		}
	})
	defer func() {
		w.stopTimers()
		close(w.done)
		wg.Wait()
	}()

	w.printer.Status(fmt.Sprintf("Watching %s", input))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.conv.Registry().Eligible(event.Name) {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Error("file watcher error")
		}
	}
}

func (w *folderWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.timers[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *folderWatcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *folderWatcher) convert(ctx context.Context, path string) {
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return
	}
	name := filepath.Base(path)
	w.printer.Status(fmt.Sprintf("Starting %s...", name))
	if _, err := w.conv.ConvertFile(ctx, path, w.output, w.suffix); err != nil {
		logger.WithError(err).WithField("file", name).Warn("conversion failed")
		w.printer.Status(fmt.Sprintf("Failed to process %s", name))
		return
	}
	w.printer.Status(fmt.Sprintf("Successfully processed %s", name))
}
