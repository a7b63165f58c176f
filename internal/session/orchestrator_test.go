package session

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/auxroom/auxcast/internal/channel"
	"github.com/auxroom/auxcast/internal/domain"
)

func fastConfig() Config {
	return Config{
		MaxFrameSize: 8,
		FramePacing:  time.Millisecond,
		SyncDelayMin: 5 * time.Millisecond,
		SyncDelayMax: 15 * time.Millisecond,
		ReactionTTL:  50 * time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func startPeer(t *testing.T, ctx context.Context, hub *channel.Hub, id domain.ParticipantID, cfg Config, sink PlaybackSink) *Orchestrator {
	t.Helper()
	ch := hub.Join(id)
	o := New(cfg, id, ch, sink)
	go func() { _ = o.Run(ctx) }()
	t.Cleanup(ch.Close)
	return o
}

func snapshotOf(t *testing.T, o *Orchestrator) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	snap, err := o.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func TestShareReachesFollower(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := channel.NewHub()
	a := startPeer(t, ctx, hub, "alice", fastConfig(), nil)
	b := startPeer(t, ctx, hub, "bob", fastConfig(), nil)

	if err := a.ShareItem(ctx, item("short", "alice")); err != nil {
		t.Fatalf("share: %v", err)
	}
	waitFor(t, func() bool {
		snap := snapshotOf(t, b)
		return snap.Role == RoleFollower && snap.Aux.Current != nil && snap.Aux.Current.DisplayName == "short"
	}, "bob to follow alice's share")

	snap := snapshotOf(t, b)
	if snap.Aux.Holder != "alice" {
		t.Fatalf("bob's holder is %q", snap.Aux.Holder)
	}
	if snap.Aux.Playing {
		t.Fatal("bob playing before any control")
	}
}

func TestChunkedShareReassemblesAtFollower(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := channel.NewHub()
	a := startPeer(t, ctx, hub, "alice", fastConfig(), nil)
	sink := &recordSink{}
	b := startPeer(t, ctx, hub, "bob", fastConfig(), sink)

	payload := strings.Repeat("music", 40) // 200 chars, 25 frames of 8
	big := &domain.Item{Payload: payload, Kind: domain.KindAudio, DisplayName: "big.mp3", AddedBy: "alice"}
	if err := a.ShareItem(ctx, big); err != nil {
		t.Fatalf("share: %v", err)
	}
	waitFor(t, func() bool {
		snap := snapshotOf(t, b)
		return snap.Aux.Current != nil && snap.Aux.Current.Payload == payload
	}, "bob to reassemble the chunked payload")
}

func TestSecondShareWhileBusyRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := channel.NewHub()
	cfg := fastConfig()
	cfg.FramePacing = 30 * time.Millisecond
	a := startPeer(t, ctx, hub, "alice", cfg, nil)

	big := &domain.Item{Payload: strings.Repeat("x", 100), Kind: domain.KindAudio, DisplayName: "slow", AddedBy: "alice"}
	if err := a.ShareItem(ctx, big); err != nil {
		t.Fatalf("first share: %v", err)
	}
	if err := a.ShareItem(ctx, item("second", "alice")); err != ErrTransferInFlight {
		t.Fatalf("second share: got %v, want %v", err, ErrTransferInFlight)
	}
}

func TestLateJoinerCatchesUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := channel.NewHub()
	a := startPeer(t, ctx, hub, "alice", fastConfig(), nil)

	if err := a.ShareItem(ctx, item("anthem", "alice")); err != nil {
		t.Fatalf("share: %v", err)
	}
	waitFor(t, func() bool { return !snapshotOf(t, a).Busy }, "alice's send to finish")
	if err := a.Play(ctx); err != nil {
		t.Fatalf("play: %v", err)
	}

	// Bob joins late; his sync request (and the join notification) make
	// alice re-share the item and then the play state.
	b := startPeer(t, ctx, hub, "bob", fastConfig(), nil)
	waitFor(t, func() bool {
		snap := snapshotOf(t, b)
		return snap.Role == RoleFollower &&
			snap.Aux.Current != nil && snap.Aux.Current.DisplayName == "anthem" &&
			snap.Aux.Playing
	}, "bob to catch up with item and play state")
}

// countingChannel counts outbound broadcasts so echo behavior is observable.
type countingChannel struct {
	channel.Channel
	n atomic.Int32
}

func (c *countingChannel) Broadcast(ctx context.Context, data []byte) error {
	c.n.Add(1)
	return c.Channel.Broadcast(ctx, data)
}

func TestFollowerNeverEchoesControls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := channel.NewHub()
	a := startPeer(t, ctx, hub, "alice", fastConfig(), nil)

	counted := &countingChannel{Channel: hub.Join("bob")}
	b := New(fastConfig(), "bob", counted, nil)
	go func() { _ = b.Run(ctx) }()
	t.Cleanup(counted.Close)

	// Only the join-time sync request should ever leave bob.
	waitFor(t, func() bool { return counted.n.Load() == 1 }, "bob's sync request")

	if err := a.ShareItem(ctx, item("track", "alice")); err != nil {
		t.Fatalf("share: %v", err)
	}
	if err := a.Play(ctx); err != nil {
		t.Fatalf("play: %v", err)
	}
	waitFor(t, func() bool { return snapshotOf(t, b).Aux.Playing }, "bob to apply play")
	if err := a.Pause(ctx); err != nil {
		t.Fatalf("pause: %v", err)
	}
	waitFor(t, func() bool { return !snapshotOf(t, b).Aux.Playing }, "bob to apply pause")

	if got := counted.n.Load(); got != 1 {
		t.Fatalf("bob broadcast %d messages, want only the sync request", got)
	}
}

func TestStopReturnsEveryoneToIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := channel.NewHub()
	a := startPeer(t, ctx, hub, "alice", fastConfig(), nil)
	b := startPeer(t, ctx, hub, "bob", fastConfig(), nil)

	if err := a.ShareItem(ctx, item("track", "alice")); err != nil {
		t.Fatalf("share: %v", err)
	}
	waitFor(t, func() bool { return snapshotOf(t, b).Aux.Current != nil }, "bob to follow")

	if err := a.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	waitFor(t, func() bool {
		return snapshotOf(t, a).Role == RoleIdle && snapshotOf(t, b).Role == RoleIdle
	}, "both peers to return to idle")
}

func TestMalformedMessageDoesNotKillLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := channel.NewHub()
	rawA := hub.Join("alice")
	t.Cleanup(rawA.Close)
	b := startPeer(t, ctx, hub, "bob", fastConfig(), nil)

	if err := rawA.Broadcast(ctx, []byte("{broken")); err != nil {
		t.Fatalf("broadcast garbage: %v", err)
	}
	if err := rawA.Broadcast(ctx, []byte(`{"type":"mystery"}`)); err != nil {
		t.Fatalf("broadcast unknown: %v", err)
	}
	// The loop must still answer after dropping both frames.
	snap := snapshotOf(t, b)
	if snap.Role != RoleIdle {
		t.Fatalf("state disturbed by garbage: %+v", snap)
	}
}

func TestReactionsFlowBetweenPeers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := channel.NewHub()
	a := startPeer(t, ctx, hub, "alice", fastConfig(), nil)
	b := startPeer(t, ctx, hub, "bob", fastConfig(), nil)

	if err := a.React(ctx, "🔥"); err != nil {
		t.Fatalf("react: %v", err)
	}
	if len(a.Reactions()) != 1 {
		t.Fatal("reaction not visible locally")
	}
	waitFor(t, func() bool { return len(b.Reactions()) == 1 }, "bob to see the reaction")
	waitFor(t, func() bool { return len(b.Reactions()) == 0 }, "bob's reaction to expire")
}
