package prompt

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/liminal-ai-security/liminal-sdk-go/internal/transport"
)

// Stream is an active streamed LLM response.
type Stream struct {
	lines     *transport.LineStream
	chunks    chan *StreamChunk
	done      chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
	err       error
}

func newStream(lines *transport.LineStream, log *zap.Logger) *Stream {
	s := &Stream{
		lines:  lines,
		chunks: make(chan *StreamChunk),
		done:   make(chan struct{}),
		log:    log,
	}
	go s.readChunks()
	return s
}

// Chunks returns a channel of response chunks. It is closed when the
// response ends, fails, or the stream is closed.
func (s *Stream) Chunks() <-chan *StreamChunk {
	return s.chunks
}

// Err returns the error that ended the stream. Only valid after Chunks is
// closed.
func (s *Stream) Err() error {
	return s.err
}

// Close stops the stream and releases the connection.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.lines.Close()
	})
	return err
}

func (s *Stream) readChunks() {
	defer close(s.chunks)

	for s.lines.Next() {
		line := s.lines.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		select {
		case s.chunks <- s.decode(line):
		case <-s.done:
			return
		}
	}
	s.err = s.lines.Err()
}

// decode keeps a line that is not a chunk as plain content.
func (s *Stream) decode(line string) *StreamChunk {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		s.log.Warn("stream returned incomplete JSON chunk", zap.String("chunk", line))
		return &StreamChunk{Content: line}
	}
	_, hasContent := fields["content"]
	_, hasFinish := fields["finish_reason"]
	if !hasContent && !hasFinish {
		s.log.Warn("stream returned unrecognized JSON chunk", zap.String("chunk", line))
		return &StreamChunk{Content: line}
	}

	var chunk StreamChunk
	if err := json.Unmarshal([]byte(line), &chunk); err != nil {
		s.log.Warn("stream returned incomplete JSON chunk", zap.String("chunk", line))
		return &StreamChunk{Content: line}
	}
	return &chunk
}
