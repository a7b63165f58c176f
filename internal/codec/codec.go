// Package codec splits arbitrary-length payloads into size-bounded frames
// and reconstructs them. Both directions are pure functions.
package codec

import (
	"errors"
	"strings"
)

var (
	ErrEmptyPayload = errors.New("codec: empty payload")
	ErrFrameSize    = errors.New("codec: frame size must be positive")
)

// Split cuts payload into ceil(len/maxFrameSize) contiguous substrings in
// index order. A payload shorter than maxFrameSize yields exactly one frame.
func Split(payload string, maxFrameSize int) ([]string, error) {
	if maxFrameSize < 1 {
		return nil, ErrFrameSize
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	frames := make([]string, 0, (len(payload)+maxFrameSize-1)/maxFrameSize)
	for start := 0; start < len(payload); start += maxFrameSize {
		end := start + maxFrameSize
		if end > len(payload) {
			end = len(payload)
		}
		frames = append(frames, payload[start:end])
	}
	return frames, nil
}

// Join concatenates frames in index order. Join(Split(p, n)) == p for every
// non-empty p and n >= 1.
func Join(frames []string) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString(f)
	}
	return b.String()
}
