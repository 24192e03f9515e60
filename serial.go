package serial

import (
	"errors"
	"strings"
)

// DefaultDelimiter terminates lines when none is given.
const DefaultDelimiter = "\r\n"

// LineReader reads delimiter-terminated lines from a Stream, avoiding bufio
// so a line is handed over as soon as its delimiter arrives.
type LineReader struct {
	s       *Stream
	delim   string
	buf     []byte
	pending string
}

// Lines returns a LineReader splitting on delim, or DefaultDelimiter when
// delim is empty. Only one goroutine should read lines from a Stream.
func (s *Stream) Lines(delim string) *LineReader {
	if delim == "" {
		delim = DefaultDelimiter
	}
	return &LineReader{s: s, delim: delim, buf: make([]byte, 4096)}
}

// ReadLine blocks until a full line is received and returns it without
// the delimiter. Bytes after the delimiter are kept for the next call.
func (l *LineReader) ReadLine() (string, error) {
	for {
		if idx := strings.Index(l.pending, l.delim); idx >= 0 {
			line := l.pending[:idx]
			l.pending = l.pending[idx+len(l.delim):]
			return line, nil
		}
		n, err := l.s.Read(l.buf)
		if err != nil {
			return "", err
		}
		l.pending += string(l.buf[:n])
	}
}

// ReadLinesLoop calls onLine for every complete line until the stream is
// closed or fails. A failure is passed to onError; a close ends the loop
// silently.
func (l *LineReader) ReadLinesLoop(onLine func(string), onError func(error)) {
	for {
		line, err := l.ReadLine()
		if errors.Is(err, ErrStreamClosed) {
			return
		}
		if err != nil {
			onError(err)
			return
		}
		onLine(line)
	}
}

// WriteLine writes line followed by newline in one driver call.
func (s *Stream) WriteLine(line string, newline string) error {
	_, err := s.Write([]byte(line + newline))
	return err
}
