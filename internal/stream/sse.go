package stream

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE line. Push events carry whole commit
// lists and can be large.
const maxLineSize = 4 << 20

// message is one dispatched server-sent event.
type message struct {
	name string
	data string
	id   string
}

// readMessages parses the text/event-stream format from r and calls fn for
// every complete event, in order. It returns when r is exhausted or fails.
func readMessages(r io.Reader, fn func(message)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		name string
		id   string
		data strings.Builder
		seen bool
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if seen {
				fn(message{name: eventName(name), data: strings.TrimSuffix(data.String(), "\n"), id: id})
			}
			name, seen = "", false
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
			seen = true
		case "id":
			id = value
		}
		// "retry" is ignored: reconnects use a fixed delay.
	}
	return sc.Err()
}

func eventName(name string) string {
	if name == "" {
		return "message"
	}
	return name
}
