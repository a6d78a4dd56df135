package transcode

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is one Server-Sent Event read from an upstream stream.
type sseEvent struct {
	// Name is the "event:" field (empty when the upstream only sends data lines).
	Name string

	// Data is the combined "data:" payload (multi-line data joined with "\n").
	Data string
}

// sseReader reads Server-Sent Events from an upstream response body.
// It handles both the bare "data:" framing used by OpenAI-style and
// Gemini-style streams and the named "event:"/"data:" framing used by
// Claude-style streams.
type sseReader struct {
	scanner *bufio.Scanner
}

// maxEventSize bounds a single SSE event line. Upstream deltas are small;
// the limit only guards against a misbehaving upstream.
const maxEventSize = 1024 * 1024

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &sseReader{scanner: scanner}
}

// Next reads the next complete event. It returns io.EOF when the stream
// ends without a further event.
func (r *sseReader) Next() (*sseEvent, error) {
	var name string
	var dataLines []string

	for r.scanner.Scan() {
		line := r.scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if name != "" || len(dataLines) > 0 {
				break
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// Ignore other SSE fields (id, retry) and comments
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	if name == "" && len(dataLines) == 0 {
		return nil, io.EOF
	}

	return &sseEvent{
		Name: name,
		Data: strings.Join(dataLines, "\n"),
	}, nil
}
