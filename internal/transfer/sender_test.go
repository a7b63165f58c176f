package transfer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/auxroom/auxcast/internal/channel"
	"github.com/auxroom/auxcast/internal/domain"
	"github.com/auxroom/auxcast/internal/wire"
)

// fakeChannel records broadcasts and can be told to fail from the nth call on.
type fakeChannel struct {
	sent   [][]byte
	failAt int // 1-based call number; 0 never fails
	calls  int
}

func (f *fakeChannel) Broadcast(_ context.Context, data []byte) error {
	f.calls++
	if f.failAt > 0 && f.calls >= f.failAt {
		return errors.New("send failed")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	f.sent = append(f.sent, buf)
	return nil
}

func (f *fakeChannel) Events() <-chan channel.Event { return nil }
func (f *fakeChannel) Close()                      {}

func testItem(t *testing.T, payload string) *domain.Item {
	t.Helper()
	item, err := domain.NewItem(payload, domain.KindAudio, "track.mp3", "alice")
	if err != nil {
		t.Fatalf("new item: %v", err)
	}
	return item
}

func TestSmallPayloadSentUnchunked(t *testing.T) {
	ch := &fakeChannel{}
	s := &Sender{MaxFrameSize: 100, Pacing: time.Millisecond}
	if err := s.SendItem(context.Background(), ch, testItem(t, "short payload")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(ch.sent))
	}
	msg, err := wire.Decode(ch.sent[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	share, ok := msg.(wire.Share)
	if !ok {
		t.Fatalf("got %T, want wire.Share", msg)
	}
	if share.Payload != "short payload" || share.AddedBy != "alice" {
		t.Fatalf("share fields lost: %+v", share)
	}
}

func TestLargePayloadChunkedInOrder(t *testing.T) {
	payload := strings.Repeat("z", 95)
	ch := &fakeChannel{}
	var progress []int
	s := &Sender{
		MaxFrameSize: 10,
		Pacing:       time.Millisecond,
		OnProgress:   func(sent, total int) { progress = append(progress, sent) },
	}
	if err := s.SendItem(context.Background(), ch, testItem(t, payload)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(ch.sent) != 10 {
		t.Fatalf("sent %d messages, want 10", len(ch.sent))
	}
	var rebuilt strings.Builder
	var id string
	for i, data := range ch.sent {
		msg, err := wire.Decode(data)
		if err != nil {
			t.Fatalf("decode chunk %d: %v", i, err)
		}
		chunk, ok := msg.(wire.Chunk)
		if !ok {
			t.Fatalf("message %d is %T, want wire.Chunk", i, msg)
		}
		if chunk.Index != i {
			t.Fatalf("chunk %d has index %d", i, chunk.Index)
		}
		if chunk.TotalFrames != 10 {
			t.Fatalf("chunk %d total %d, want 10", i, chunk.TotalFrames)
		}
		if i == 0 {
			id = chunk.TransferID
		} else if chunk.TransferID != id {
			t.Fatalf("transfer id changed mid-transfer")
		}
		if chunk.Meta.DisplayName != "track.mp3" {
			t.Fatalf("chunk %d metadata lost: %+v", i, chunk.Meta)
		}
		rebuilt.WriteString(chunk.Data)
	}
	if id == "" {
		t.Fatal("empty transfer id")
	}
	if rebuilt.String() != payload {
		t.Fatal("chunk data does not rebuild payload")
	}
	if len(progress) != 10 || progress[9] != 10 {
		t.Fatalf("progress reports %v", progress)
	}
}

func TestSendFailureAbortsSequence(t *testing.T) {
	payload := strings.Repeat("z", 95)
	ch := &fakeChannel{failAt: 3}
	s := &Sender{MaxFrameSize: 10, Pacing: time.Millisecond}
	err := s.SendItem(context.Background(), ch, testItem(t, payload))
	if err == nil {
		t.Fatal("expected error")
	}
	if ch.calls != 3 {
		t.Fatalf("made %d broadcast calls after failure, want 3", ch.calls)
	}
}

func TestSendCanceledBetweenFrames(t *testing.T) {
	payload := strings.Repeat("z", 50)
	ch := &fakeChannel{}
	s := &Sender{MaxFrameSize: 10, Pacing: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := s.SendItem(ctx, ch, testItem(t, payload)); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if len(ch.sent) >= 5 {
		t.Fatalf("all %d frames sent despite cancellation", len(ch.sent))
	}
}
