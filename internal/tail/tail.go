package tail

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Source yields newly appended lines from one log target. Platform
// event logs satisfy the same contract by rendering native records to
// line form before returning them.
type Source interface {
	// ReadNewLines returns complete lines appended since the current
	// offset. rotated reports that the file was truncated or replaced
	// and reading restarted from offset 0.
	ReadNewLines(ctx context.Context) (lines []string, rotated bool, err error)
	Offset() int64
	Fingerprint() string
	Close() error
}

var ErrNotFound = errors.New("log file not found")

// fingerprintBytes bounds the content prefix hashed to identify a file
// across sweeps. The prefix is stable under appends and changes when
// the file is replaced in place.
const fingerprintBytes = 256

// File tails a plain text log file by byte offset. The file is opened
// per read so a rotation by rename/recreate never pins a stale handle.
type File struct {
	path        string
	offset      int64
	fingerprint string
}

// OpenAt resumes tailing path from a persisted offset and fingerprint.
// Pass offset 0 and an empty fingerprint for a fresh target.
func OpenAt(path string, offset int64, fingerprint string) (*File, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	return &File{path: path, offset: offset, fingerprint: fingerprint}, nil
}

func (f *File) Path() string        { return f.path }
func (f *File) Offset() int64       { return f.offset }
func (f *File) Fingerprint() string { return f.fingerprint }
func (f *File) Close() error        { return nil }

func (f *File) ReadNewLines(ctx context.Context) ([]string, bool, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, fmt.Errorf("%w: %s", ErrNotFound, f.path)
		}
		return nil, false, err
	}
	defer fh.Close()

	st, err := fh.Stat()
	if err != nil {
		return nil, false, err
	}

	rotated, err := f.detectRotation(fh, st.Size())
	if err != nil {
		return nil, false, err
	}
	if rotated {
		f.offset = 0
	}

	if _, err := fh.Seek(f.offset, io.SeekStart); err != nil {
		return nil, rotated, err
	}

	var lines []string
	r := bufio.NewReader(fh)
	for {
		if err := ctx.Err(); err != nil {
			return lines, rotated, err
		}
		line, err := r.ReadString('\n')
		if err == nil {
			// Only newline-terminated lines consume offset; a trailing
			// partial write is left for the next sweep.
			f.offset += int64(len(line))
			lines = append(lines, strings.TrimRight(line, "\r\n"))
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		return lines, rotated, err
	}

	fp, err := hashPrefix(fh, min64(int64(fingerprintBytes), st.Size()))
	if err != nil {
		return lines, rotated, err
	}
	f.fingerprint = fp
	return lines, rotated, nil
}

// detectRotation compares the stored fingerprint and offset against the
// file's current content. Truncation (size below the stored offset) and
// replacement (prefix hash mismatch) both count as rotation.
func (f *File) detectRotation(fh *os.File, size int64) (bool, error) {
	if size < f.offset {
		return true, nil
	}
	n, want, ok := splitFingerprint(f.fingerprint)
	if !ok {
		return false, nil
	}
	if size < n {
		return true, nil
	}
	got, err := hashPrefix(fh, n)
	if err != nil {
		return false, err
	}
	_, gotHash, _ := splitFingerprint(got)
	return gotHash != want, nil
}

func hashPrefix(fh *os.File, n int64) (string, error) {
	if n <= 0 {
		return "", nil
	}
	buf := make([]byte, n)
	read, err := fh.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	sum := sha256.Sum256(buf[:read])
	return strconv.FormatInt(int64(read), 10) + ":" + hex.EncodeToString(sum[:]), nil
}

func splitFingerprint(s string) (n int64, hash string, ok bool) {
	i := strings.IndexByte(s, ':')
	if i <= 0 {
		return 0, "", false
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil || n <= 0 {
		return 0, "", false
	}
	return n, s[i+1:], true
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
