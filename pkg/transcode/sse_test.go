package transcode

import (
	"io"
	"strings"
	"testing"
)

func TestSSEReaderNext(t *testing.T) {
	input := strings.Join([]string{
		`data: {"a":1}`,
		``,
		`event: message_start`,
		`data: {"b":2}`,
		``,
		`: keep-alive comment`,
		``,
		`data: first`,
		`data: second`,
		``,
	}, "\n")

	r := newSSEReader(strings.NewReader(input))

	ev, err := r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ev.Name != "" || ev.Data != `{"a":1}` {
		t.Errorf("event 1 = %+v, want bare data", ev)
	}

	ev, err = r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ev.Name != "message_start" || ev.Data != `{"b":2}` {
		t.Errorf("event 2 = %+v, want named event", ev)
	}

	ev, err = r.Next()
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if ev.Data != "first\nsecond" {
		t.Errorf("event 3 data = %q, want multi-line join", ev.Data)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() after end = %v, want io.EOF", err)
	}
}

func TestSSEReaderEmptyStream(t *testing.T) {
	r := newSSEReader(strings.NewReader(""))
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() = %v, want io.EOF", err)
	}
}
