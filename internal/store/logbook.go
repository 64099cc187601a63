package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Logbook writes the human-readable line search table, one row per misfit
// evaluation:
//
//	      ITER     STEPLEN      MISFIT
//	==========  ==========  ==========
//	         1   0.000e+00   1.000e+00
//	             1.000e+00   9.000e-01
//
// The iteration number appears only on zero-step rows (the base model of an
// outer iteration); trial rows leave it blank. The logbook is advisory and
// append-only; the checkpoint history is the authoritative recovery state.
type Logbook struct {
	path string
}

const logbookColWidth = 10

// NewLogbook creates a logbook at path, truncating any existing file and
// writing the header.
func NewLogbook(path string) (*Logbook, error) {
	l := &Logbook{path: path}
	if err := l.WriteHeader(); err != nil {
		return nil, err
	}
	return l, nil
}

// OpenLogbook opens an existing logbook for appending, writing the header
// first when the file does not exist yet. Used on resume.
func OpenLogbook(path string) (*Logbook, error) {
	l := &Logbook{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.WriteHeader(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat logbook: %w", err)
	}
	return l, nil
}

// JobLogbookPath returns the conventional logbook location inside a job
// directory.
func JobLogbookPath(baseDir, jobID string) string {
	return filepath.Join(baseDir, "jobs", jobID, "search.log")
}

// Path returns the filesystem path of the logbook.
func (l *Logbook) Path() string { return l.path }

// WriteHeader writes a fresh file containing exactly the two header lines.
func (l *Logbook) WriteHeader() error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create logbook directory: %w", err)
		}
	}

	sep := strings.Repeat("=", logbookColWidth)
	header := fmt.Sprintf("%*s  %*s  %*s\n%s  %s  %s\n",
		logbookColWidth, "ITER", logbookColWidth, "STEPLEN", logbookColWidth, "MISFIT",
		sep, sep, sep)

	if err := os.WriteFile(l.path, []byte(header), 0644); err != nil {
		return fmt.Errorf("failed to write logbook header: %w", err)
	}
	return nil
}

// Record appends one evaluation row, creating the file with its header first
// if it has gone missing. Implements search.Recorder.
func (l *Logbook) Record(iter int, stepLen, misfit float64) error {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		if err := l.WriteHeader(); err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("failed to stat logbook: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open logbook: %w", err)
	}
	defer f.Close()

	// Only base-model rows carry the iteration number.
	iterStr := ""
	if stepLen == 0 {
		iterStr = strconv.Itoa(iter)
	}
	if _, err := fmt.Fprintf(f, "%*s  %*.3e  %*.3e\n",
		logbookColWidth, iterStr, logbookColWidth, stepLen, logbookColWidth, misfit); err != nil {
		return fmt.Errorf("failed to append logbook row: %w", err)
	}
	return nil
}

// Tail returns up to n trailing rows of the logbook (excluding the header),
// for status displays.
func (l *Logbook) Tail(n int) ([]string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{}
		}
		return nil, fmt.Errorf("failed to open logbook: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for i := 0; scanner.Scan(); i++ {
		if i < 2 {
			continue // header
		}
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan logbook: %w", err)
	}

	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
