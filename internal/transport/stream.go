package transport

import (
	"bufio"
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	sdkerrors "github.com/liminal-ai-security/liminal-sdk-go/errors"
)

const maxLineSize = 1 << 20

// LineStream yields the lines of a streaming response body as they arrive.
// It is finite and cannot be restarted.
type LineStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	release func()
	log     *zap.Logger

	line string
	err  error

	mu     sync.Mutex
	closed bool
}

// Stream executes req without buffering the body. Streams are not subject to
// the executor's request timeout; cancel ctx or call Close to stop early.
func (e *Executor) Stream(ctx context.Context, req *Request) (*LineStream, error) {
	c, release := e.client(0)

	r, url, id, err := e.prepare(ctx, c, req)
	if err != nil {
		release()
		return nil, err
	}
	r.SetDoNotParseResponse(true)

	e.log.Debug("opening stream",
		zap.String("method", req.Method),
		zap.String("url", url),
		zap.String("request_id", id))

	resp, err := r.Execute(req.Method, url)
	if err != nil {
		release()
		return nil, sdkerrors.Wrap(sdkerrors.KindRequest, err, "Error while sending request to %s: %v", url, err)
	}

	body := resp.RawBody()
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		data, _ := io.ReadAll(body)
		_ = body.Close()
		release()
		return nil, sdkerrors.ParseErrorResponse(url, resp.StatusCode(), data)
	}

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	return &LineStream{
		body:    body,
		scanner: sc,
		release: release,
		log:     e.log.With(zap.String("request_id", id)),
	}, nil
}

// Next advances to the next line. It returns false at the end of the body,
// on error, or after Close.
func (s *LineStream) Next() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}

	if s.scanner.Scan() {
		s.line = s.scanner.Text()
		s.log.Info("received line of streaming response", zap.String("line", s.line))
		return true
	}

	if err := s.scanner.Err(); err != nil {
		s.mu.Lock()
		if !s.closed {
			s.err = sdkerrors.Wrap(sdkerrors.KindRequest, err, "Error while reading stream: %v", err)
		}
		s.mu.Unlock()
	}
	_ = s.Close()
	return false
}

// Text returns the current line.
func (s *LineStream) Text() string {
	return s.line
}

// Err returns the first read error, if any.
func (s *LineStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close releases the response body. It is safe to call more than once.
func (s *LineStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.body.Close()
	s.release()
	return err
}
