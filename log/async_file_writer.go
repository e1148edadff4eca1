// Package log adds a file sink with both size- and wall-clock-based
// rotation for go-ethereum/log, wired under log.Root() at process
// start. It does not re-export any of go-ethereum/log's identifiers.
package log

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// backupTimeFormat names a rotated-away log file "<path>.<timestamp>".
// lumberjack's own "<name>-<timestamp><ext>" naming is used only for the
// size-triggered rotations it performs internally between our hourly
// boundaries; our own renames on the hourly boundary use this format.
const backupTimeFormat = "2006-01-02T15-04-05.000"

// AsyncFileWriter writes log records to disk off the caller's goroutine,
// rotating the active file by size (delegated to lumberjack.Logger, which
// already knows how to cap a single file and prune its own backups) and
// additionally forcing a rotation on a fixed hourly cadence, which
// lumberjack has no notion of.
type AsyncFileWriter struct {
	filePath    string
	maxBackups  int
	rotateHours uint

	logger *lumberjack.Logger

	queue chan []byte
	done  chan struct{}
	wg    sync.WaitGroup
	mu    sync.Mutex
}

// NewAsyncFileWriter returns a writer for filePath. maxBytesSize bounds the
// active file's size before lumberjack rotates it; maxBackups bounds how
// many hourly-rotated backups are retained; rotateHours is the forced
// rotation cadence (0 means hourly).
func NewAsyncFileWriter(filePath string, maxBytesSize int64, maxBackups int, rotateHours uint) *AsyncFileWriter {
	megabytes := int(maxBytesSize / (1 << 20))
	if megabytes < 1 {
		megabytes = 1
	}
	return &AsyncFileWriter{
		filePath:    filePath,
		maxBackups:  maxBackups,
		rotateHours: rotateHours,
		logger: &lumberjack.Logger{
			Filename: filePath,
			MaxSize:  megabytes,
		},
		queue: make(chan []byte, 1024),
		done:  make(chan struct{}),
	}
}

// Start launches the background write loop. Must be called once before Write.
func (w *AsyncFileWriter) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Write enqueues p for the background loop to persist. It never blocks on
// disk I/O itself, only on the queue filling up.
func (w *AsyncFileWriter) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case w.queue <- cp:
	case <-w.done:
	}
	return len(p), nil
}

// Stop drains the queue, closes the underlying file, and returns once the
// background loop has exited.
func (w *AsyncFileWriter) Stop() {
	close(w.done)
	w.wg.Wait()
	w.logger.Close()
}

func (w *AsyncFileWriter) loop() {
	defer w.wg.Done()

	next := w.rotationDeadline(time.Now())
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case p := <-w.queue:
			w.mu.Lock()
			w.logger.Write(p)
			w.mu.Unlock()
		case now := <-ticker.C:
			if !now.Before(next) {
				w.rotate()
				next = w.rotationDeadline(now)
			}
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *AsyncFileWriter) drain() {
	for {
		select {
		case p := <-w.queue:
			w.mu.Lock()
			w.logger.Write(p)
			w.mu.Unlock()
		default:
			return
		}
	}
}

func (w *AsyncFileWriter) rotationDeadline(now time.Time) time.Time {
	hour := getNextRotationHour(now, w.rotateHours)
	d := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !d.After(now) {
		d = d.Add(24 * time.Hour)
	}
	return d
}

// getNextRotationHour returns the hour-of-day (0-23) of the next forced
// rotation, delta hours past the most recent rotation boundary at or
// before now.
func getNextRotationHour(now time.Time, delta uint) int {
	if delta == 0 {
		delta = 1
	}
	return (now.Hour()/int(delta) + 1) * int(delta) % 24
}

func (w *AsyncFileWriter) rotate() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := os.Stat(w.filePath); err != nil {
		return
	}
	backup := w.filePath + "." + time.Now().Format(backupTimeFormat)
	w.logger.Close()
	if err := os.Rename(w.filePath, backup); err != nil {
		return
	}
	w.removeExpiredFileLocked()
}

// getExpiredFile returns the oldest backup beyond maxBackups retained
// generations, or "" if none qualifies for removal yet.
func (w *AsyncFileWriter) getExpiredFile(filePath string, maxBackups int, rotateHours uint) string {
	_ = rotateHours // retention here is by count, not age; rotateHours only sets the cadence that produces backups
	backups := listBackups(filePath)
	if len(backups) <= maxBackups {
		return ""
	}
	return backups[0]
}

// removeExpiredFile trims backups down to maxBackups, oldest first.
func (w *AsyncFileWriter) removeExpiredFile() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeExpiredFileLocked()
}

func (w *AsyncFileWriter) removeExpiredFileLocked() {
	for {
		expired := w.getExpiredFile(w.filePath, w.maxBackups, w.rotateHours)
		if expired == "" {
			return
		}
		os.Remove(expired)
	}
}

// listBackups returns every rotated-away backup of filePath, oldest first;
// backupTimeFormat is chosen so lexical sort is chronological sort.
func listBackups(filePath string) []string {
	dir := filepath.Dir(filePath)
	prefix := filepath.Base(filePath) + "."
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(names)
	return names
}
