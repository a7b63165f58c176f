package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxcast/internal/channel"
	"github.com/auxroom/auxcast/internal/domain"
	"github.com/auxroom/auxcast/internal/transfer"
	"github.com/auxroom/auxcast/internal/wire"
)

var (
	ErrChannelClosed    = errors.New("session: channel closed")
	ErrTransferInFlight = errors.New("session: a transfer is already in flight")
	ErrStopped          = errors.New("session: orchestrator stopped")
)

// Config carries the protocol policy knobs. Peers with different values
// still interoperate; only timing differs.
type Config struct {
	MaxFrameSize int
	FramePacing  time.Duration
	SyncDelayMin time.Duration
	SyncDelayMax time.Duration
	ReactionTTL  time.Duration
}

// DefaultConfig matches the constants the deployed clients use.
func DefaultConfig() Config {
	return Config{
		MaxFrameSize: 60000,
		FramePacing:  50 * time.Millisecond,
		SyncDelayMin: 500 * time.Millisecond,
		SyncDelayMax: 1500 * time.Millisecond,
		ReactionTTL:  3000 * time.Millisecond,
	}
}

// Orchestrator wires the state machine, the reassembly table, the catch-up
// flow and the reaction board to one group channel.
//
// All protocol state is mutated from a single event loop: inbound channel
// events and local calls both funnel through it, so the components behind
// it need no locks of their own.
type Orchestrator struct {
	cfg    Config
	self   domain.ParticipantID
	ch     channel.Channel
	mach   *machine
	table  *transfer.Table
	sender *transfer.Sender
	board  *Board

	cmds chan func()
	done chan struct{}

	// Loop-confined; never touched outside Run's goroutine.
	runCtx       context.Context
	transferBusy bool
	resendArmed  bool

	// OnProgress, if set, is called from the sending goroutine after each
	// outbound frame. OnError is called from the loop when an async send
	// fails.
	OnProgress func(sent, total int)
	OnError    func(error)
}

// Snapshot is a read-only copy of the local session view.
type Snapshot struct {
	Role Role
	Aux  AuxState
	Busy bool
}

func New(cfg Config, self domain.ParticipantID, ch channel.Channel, sink PlaybackSink) *Orchestrator {
	o := &Orchestrator{
		cfg:   cfg,
		self:  self,
		ch:    ch,
		mach:  newMachine(self, sink),
		board: NewBoard(cfg.ReactionTTL),
		cmds:  make(chan func(), 16),
		done:  make(chan struct{}),
	}
	o.table = transfer.NewTable(o.mach.ApplyShare)
	o.sender = &transfer.Sender{
		MaxFrameSize: cfg.MaxFrameSize,
		Pacing:       cfg.FramePacing,
		OnProgress: func(sent, total int) {
			if o.OnProgress != nil {
				o.OnProgress(sent, total)
			}
		},
	}
	return o
}

// Run drives the event loop until ctx is canceled or the channel dies.
// It first announces the local join by asking whoever holds the aux to
// rebroadcast; that request is fire-and-forget.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.done)
	o.runCtx = ctx

	if data, err := wire.Encode(wire.RequestSync{}); err == nil {
		if err := o.ch.Broadcast(ctx, data); err != nil {
			log.Warn().Err(err).Str("module", "session").Msg("sync request failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-o.ch.Events():
			if !ok {
				return ErrChannelClosed
			}
			o.handleEvent(ev)
		case fn := <-o.cmds:
			fn()
		}
	}
}

// do runs fn on the loop and waits for its result.
func (o *Orchestrator) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	select {
	case o.cmds <- func() { errc <- fn() }:
	case <-o.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-o.done:
		// The loop may have run fn just before exiting.
		select {
		case err := <-errc:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands fn to the loop without waiting; dropped if the loop is gone.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.cmds <- fn:
	case <-o.done:
	}
}

// TakeControl claims the aux locally. Nothing is broadcast until an item is
// shared.
func (o *Orchestrator) TakeControl(ctx context.Context) error {
	return o.do(ctx, o.mach.TakeControl)
}

// ShareItem makes the local participant the holder of item and broadcasts
// it to the room, chunked if needed. The paced send runs asynchronously;
// a second share while one is in flight is rejected.
func (o *Orchestrator) ShareItem(ctx context.Context, item *domain.Item) error {
	return o.do(ctx, func() error {
		if o.transferBusy {
			return ErrTransferInFlight
		}
		o.mach.ShareItem(item)
		o.startTransfer(item, false)
		return nil
	})
}

// Play resumes playback. Holder only.
func (o *Orchestrator) Play(ctx context.Context) error {
	return o.do(ctx, func() error { return o.setPlaying(true) })
}

// Pause pauses playback. Holder only.
func (o *Orchestrator) Pause(ctx context.Context) error {
	return o.do(ctx, func() error { return o.setPlaying(false) })
}

// Stop clears the shared item and releases the aux for everyone.
func (o *Orchestrator) Stop(ctx context.Context) error {
	return o.do(ctx, func() error {
		msg, err := o.mach.Stop()
		if err != nil {
			return err
		}
		return o.broadcast(msg)
	})
}

// React broadcasts an ephemeral reaction and shows it locally. Delivery is
// best-effort; the local reaction appears even if the broadcast fails.
func (o *Orchestrator) React(ctx context.Context, symbol string) error {
	return o.do(ctx, func() error {
		o.board.Add(symbol, o.self)
		return o.broadcast(wire.Reaction{Symbol: symbol, Sender: o.self})
	})
}

// Reactions snapshots the currently visible reactions.
func (o *Orchestrator) Reactions() []domain.Reaction {
	return o.board.Visible()
}

// Snapshot returns a copy of the local session view.
func (o *Orchestrator) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := o.do(ctx, func() error {
		snap = Snapshot{Role: o.mach.role, Aux: o.mach.aux, Busy: o.transferBusy}
		return nil
	})
	return snap, err
}

func (o *Orchestrator) setPlaying(playing bool) error {
	msg, err := o.mach.SetPlaying(playing)
	if err != nil {
		return err
	}
	return o.broadcast(msg)
}

func (o *Orchestrator) broadcast(msg wire.Message) error {
	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	return o.ch.Broadcast(o.runCtx, data)
}

func (o *Orchestrator) handleEvent(ev channel.Event) {
	switch ev.Kind {
	case channel.EventPeerJoined:
		log.Info().Str("module", "session").Str("peer", string(ev.Peer)).Msg("peer joined")
		o.scheduleResend()
	case channel.EventPeerLeft:
		log.Info().Str("module", "session").Str("peer", string(ev.Peer)).Msg("peer left")
	case channel.EventMessage:
		msg, err := wire.Decode(ev.Data)
		if err != nil {
			log.Error().Err(err).Str("module", "session").Msg("undecodable message dropped")
			return
		}
		o.dispatch(msg)
	}
}

func (o *Orchestrator) dispatch(msg wire.Message) {
	switch v := msg.(type) {
	case wire.Share:
		o.mach.ApplyShare(v.Item())
	case wire.Chunk:
		if !o.table.Has(v.TransferID) {
			o.table.Begin(v.TransferID, v.TotalFrames, v.Meta)
		}
		o.table.PutFrame(v.TransferID, v.Index, v.Data)
	case wire.RequestSync:
		o.scheduleResend()
	case wire.Control:
		o.mach.ApplyControl(v)
	case wire.Reaction:
		o.board.Add(v.Symbol, v.Sender)
	default:
		log.Warn().Str("module", "session").Str("type", string(msg.WireType())).Msg("unhandled message")
	}
}

// scheduleResend arms the holder-side catch-up: after a jittered delay (so
// the joiner's receive path is ready) the current item is re-shared, and if
// playing, the play state follows. Repeated triggers while armed coalesce.
func (o *Orchestrator) scheduleResend() {
	if o.mach.role != RoleHolder || o.mach.aux.Current == nil {
		return
	}
	if o.resendArmed {
		return
	}
	o.resendArmed = true
	delay := o.cfg.SyncDelayMin
	if jitter := o.cfg.SyncDelayMax - o.cfg.SyncDelayMin; jitter > 0 {
		delay += rand.N(jitter)
	}
	time.AfterFunc(delay, func() {
		o.post(func() {
			o.resendArmed = false
			o.resendState()
		})
	})
}

func (o *Orchestrator) resendState() {
	if o.mach.role != RoleHolder || o.mach.aux.Current == nil {
		return
	}
	if o.transferBusy {
		log.Debug().Str("module", "session").Msg("resend skipped, transfer in flight")
		return
	}
	log.Info().Str("module", "session").Str("name", o.mach.aux.Current.DisplayName).Msg("resending current state")
	o.startTransfer(o.mach.aux.Current, true)
}

// startTransfer launches the paced send off the loop. Completion and
// failure are posted back into the loop; withPlayState re-broadcasts the
// play control after a successful resend if still playing.
func (o *Orchestrator) startTransfer(item *domain.Item, withPlayState bool) {
	o.transferBusy = true
	ctx := o.runCtx
	go func() {
		err := o.sender.SendItem(ctx, o.ch, item)
		o.post(func() {
			o.transferBusy = false
			if err != nil {
				log.Error().Err(err).Str("module", "session").Str("name", item.DisplayName).Msg("transfer aborted")
				if o.OnError != nil {
					o.OnError(err)
				}
				return
			}
			if withPlayState && o.mach.role == RoleHolder && o.mach.aux.Playing {
				if err := o.broadcast(wire.Control{Action: wire.ActionPlay}); err != nil {
					log.Warn().Err(err).Str("module", "session").Msg("play state rebroadcast failed")
				}
			}
		})
	}()
}
