package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trackexport/internal/logging"
)

// MainLogName is the application log inside the log directory.
const MainLogName = "trackexport.log"

// ErrRunLogNotFound is returned by Resolve when no run log matches.
var ErrRunLogNotFound = errors.New("run log not found")

// Options controls Tail.
type Options struct {
	// Lines is how many trailing lines to print first; 0 prints none.
	Lines int
	// Follow keeps reading appended lines until the context ends.
	Follow bool
	// Poll is the follow interval. Defaults to 250ms.
	Poll time.Duration
}

// Resolve returns the log file for runID inside logDir. An empty runID
// selects the main log; otherwise runID may be a unique prefix of a run ID.
func Resolve(logDir, runID string) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return filepath.Join(logDir, MainLogName), nil
	}
	exact := logging.RunLogPath(logDir, runID)
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}
	matches, err := filepath.Glob(logging.RunLogPath(logDir, runID+"*"))
	if err != nil {
		return "", fmt.Errorf("match run log: %w", err)
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunLogNotFound, runID)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run id prefix %q is ambiguous (%d matches)", runID, len(matches))
	}
}

// Tail sends the last opts.Lines lines of path to emit and, when following,
// every line appended afterwards. A missing file is treated as empty.
func Tail(ctx context.Context, path string, opts Options, emit func(string)) error {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return fmt.Errorf("log path %q is a directory", path)
	}

	lines, offset, err := lastLines(path, opts.Lines)
	if err != nil {
		return err
	}
	for _, line := range lines {
		emit(line)
	}
	if !opts.Follow {
		return nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		var fresh []string
		fresh, offset, err = readFrom(path, offset)
		if err != nil {
			return err
		}
		for _, line := range fresh {
			emit(line)
		}
	}
}

// lastLines returns up to limit trailing lines and the offset of the end of
// the file.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, limit)
	count, next := 0, 0
	scanner := newScanner(file)
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % limit
		count = min(count+1, limit)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%limit])
	}
	return lines, end, nil
}

// readFrom returns complete lines written after offset. A file that shrank is
// read from the start again.
func readFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReader(file)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A partial last line is left for the next poll.
			break
		}
		offset += int64(len(line))
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
	return lines, offset, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}
