// Package common provides shared constants, types, and utilities
// used across the Teleport tunnel manager.
package common

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxFileSize = 5 * 1024 * 1024 // 5MB
	defaultMaxBackups  = 5
)

// LogConfig holds configuration options for the logger.
type LogConfig struct {
	Level zerolog.Level
	// Dir is the directory for the log file. Empty disables file logging.
	Dir         string
	MaxFileSize int64 // in bytes, default 5MB
	MaxBackups  int   // number of rotated files to keep, default 5
	// Console receives human-readable output, default os.Stderr.
	Console io.Writer
}

var (
	logFileMu sync.Mutex
	logFile   *RotatingFile
)

// InitLogger configures the global zerolog logger: a console writer plus,
// when Dir is set, a size-rotated JSON log file.
// Should be called early in application startup.
func InitLogger(cfg LogConfig) error {
	zerolog.SetGlobalLevel(cfg.Level)

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}
	consoleWriter := zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen}

	if cfg.Dir == "" {
		log.Logger = zerolog.New(consoleWriter).With().Timestamp().Logger()
		return nil
	}

	file, err := OpenRotatingFile(filepath.Join(cfg.Dir, LogFileName), cfg.MaxFileSize, cfg.MaxBackups)
	if err != nil {
		log.Logger = zerolog.New(consoleWriter).With().Timestamp().Logger()
		return err
	}

	logFileMu.Lock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = file
	logFileMu.Unlock()

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(consoleWriter, file)).
		With().Timestamp().Logger()
	return nil
}

// CloseLogger closes the log file. Should be called on application shutdown.
func CloseLogger() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// ParseLevel parses a level name, falling back to info.
func ParseLevel(name string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// RotatingFile is an io.Writer over a log file that is compressed and
// rotated once it exceeds maxFileSize.
type RotatingFile struct {
	mu          sync.Mutex
	file        *os.File
	path        string
	size        int64
	maxFileSize int64
	maxBackups  int
}

// isSymlink checks if a path is a symbolic link.
// Returns false if path doesn't exist (safe to create).
func isSymlink(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}

// OpenRotatingFile opens (or creates) the log file at path, rotating it
// first if it is already over the size limit.
func OpenRotatingFile(path string, maxFileSize int64, maxBackups int) (*RotatingFile, error) {
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}

	dir := filepath.Dir(path)
	// Refuse symlinked log locations.
	if isSymlink(dir) {
		return nil, fmt.Errorf("security error: log directory is a symlink")
	}
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	if isSymlink(path) {
		return nil, fmt.Errorf("security error: log file is a symlink")
	}

	r := &RotatingFile{
		path:        path,
		maxFileSize: maxFileSize,
		maxBackups:  maxBackups,
	}
	r.rotateIfNeeded()
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) open() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	r.file = file
	r.size = info.Size()
	return nil
}

// Write appends p to the log file, rotating beforehand when p would push
// the file over its size limit.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil && r.size+int64(len(p)) > r.maxFileSize {
		r.file.Close()
		r.file = nil
		r.rotate()
	}
	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Close closes the underlying file.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// rotateIfNeeded checks if the log file needs rotation and performs it.
// The file must be closed.
func (r *RotatingFile) rotateIfNeeded() {
	info, err := os.Stat(r.path)
	if err != nil {
		return
	}
	if info.Size() < r.maxFileSize {
		return
	}
	r.rotate()
}

// rotate compresses the current log file aside and prunes old backups.
func (r *RotatingFile) rotate() {
	timestamp := time.Now().Format("20060102-150405.000")
	rotatedPath := fmt.Sprintf("%s.%s.gz", r.path, timestamp)

	if err := compressFile(r.path, rotatedPath); err != nil {
		// If compression fails, just rename
		os.Rename(r.path, strings.TrimSuffix(rotatedPath, ".gz"))
	} else {
		os.Remove(r.path)
	}

	r.cleanupOldBackups()
}

// compressFile compresses a file using gzip.
func compressFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	gzWriter := gzip.NewWriter(dstFile)
	defer gzWriter.Close()

	_, err = io.Copy(gzWriter, srcFile)
	return err
}

// cleanupOldBackups removes old backup files exceeding maxBackups.
func (r *RotatingFile) cleanupOldBackups() {
	matches, err := filepath.Glob(r.path + ".*")
	if err != nil || len(matches) <= r.maxBackups {
		return
	}

	// Sort by modification time (oldest first)
	sort.Slice(matches, func(i, j int) bool {
		infoI, _ := os.Stat(matches[i])
		infoJ, _ := os.Stat(matches[j])
		if infoI == nil || infoJ == nil {
			return false
		}
		return infoI.ModTime().Before(infoJ.ModTime())
	})

	for _, path := range matches[:len(matches)-r.maxBackups] {
		os.Remove(path)
	}
}
