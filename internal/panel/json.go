package panel

import (
	"io"
	"sync"
)

// JSON writes each message as one line of JSON.
type JSON struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSON creates a JSON-lines panel writing to w.
func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

// Update writes the encoded message followed by a newline.
func (j *JSON) Update(kind string, data any) error {
	line, err := Encode(kind, data)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.w.Write(append(line, '\n'))
	return err
}
