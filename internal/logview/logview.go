// Package logview prints and follows the application log file.
package logview

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultLines is the number of lines Tail shows when n is not positive.
const DefaultLines = 800

// DefaultPollInterval is the fallback polling interval used by Follow.
const DefaultPollInterval = 250 * time.Millisecond

// Tail returns the last n lines of the file at path.
func Tail(path string, n int) ([]string, error) {
	if n <= 0 {
		n = DefaultLines
	}

	f, err := os.Open(path) // #nosec G304 -- configured log path
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	start := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if len(ring) < n {
			ring = append(ring, sc.Text())
			continue
		}
		ring[start] = sc.Text()
		start = (start + 1) % n
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading log file: %w", err)
	}

	return append(ring[start:], ring[:start]...), nil
}

// Follower streams lines appended to a file.
type Follower struct {
	path         string
	pollInterval time.Duration

	file   *os.File
	reader *bufio.Reader
	size   int64
}

// NewFollower positions a follower at the current end of the file at path.
// The file must exist.
func NewFollower(path string, pollInterval time.Duration) (*Follower, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving log path: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	fl := &Follower{path: abs, pollInterval: pollInterval}
	if err := fl.open(); err != nil {
		return nil, err
	}
	end, err := fl.file.Seek(0, io.SeekEnd)
	if err != nil {
		fl.file.Close()
		return nil, fmt.Errorf("seeking log file: %w", err)
	}
	fl.size = end
	fl.reader = bufio.NewReader(fl.file)
	return fl, nil
}

// Run writes complete appended lines to w until ctx is done. A recreated
// or truncated file is read again from the start.
func (fl *Follower) Run(ctx context.Context, w io.Writer) error {
	defer fl.file.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(fl.path)); err != nil {
		return fmt.Errorf("watching log directory: %w", err)
	}

	ticker := time.NewTicker(fl.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != fl.path {
				continue
			}
			switch {
			case event.Has(fsnotify.Create):
				if err := fl.reopen(); err != nil {
					continue
				}
				if err := fl.copyLines(w); err != nil {
					return err
				}
			case event.Has(fsnotify.Write):
				if err := fl.copyLines(w); err != nil {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		case <-ticker.C:
			if err := fl.poll(w); err != nil {
				return err
			}
		}
	}
}

func (fl *Follower) open() error {
	f, err := os.Open(fl.path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	fl.file = f
	fl.reader = bufio.NewReader(f)
	fl.size = 0
	return nil
}

func (fl *Follower) reopen() error {
	old := fl.file
	if err := fl.open(); err != nil {
		return err
	}
	old.Close()
	return nil
}

// poll covers file systems where change events are not delivered.
func (fl *Follower) poll(w io.Writer) error {
	info, err := os.Stat(fl.path)
	if err != nil {
		return nil
	}
	if info.Size() < fl.size {
		if _, err := fl.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("seeking log file: %w", err)
		}
		fl.reader = bufio.NewReader(fl.file)
		fl.size = 0
	}
	if info.Size() > fl.size {
		return fl.copyLines(w)
	}
	return nil
}

// copyLines writes every complete line available. A trailing partial line
// is left for the next call.
func (fl *Follower) copyLines(w io.Writer) error {
	for {
		line, err := fl.reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			if len(line) > 0 {
				if _, serr := fl.file.Seek(-int64(len(line)), io.SeekCurrent); serr != nil {
					return fmt.Errorf("seeking log file: %w", serr)
				}
				fl.reader = bufio.NewReader(fl.file)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading log file: %w", err)
		}

		fl.size += int64(len(line))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
}

// Follow streams lines appended to the file at path into w until ctx is
// done.
func Follow(ctx context.Context, path string, w io.Writer) error {
	fl, err := NewFollower(path, DefaultPollInterval)
	if err != nil {
		return err
	}
	return fl.Run(ctx, w)
}
