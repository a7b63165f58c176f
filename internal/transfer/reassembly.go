// Package transfer implements the chunked large-object broadcast: a paced
// sender on the outbound side and a slot-addressed reassembly table on the
// inbound side. Chunks of different transfers may interleave freely; a
// transfer is identified solely by its id.
package transfer

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxcast/internal/codec"
	"github.com/auxroom/auxcast/internal/domain"
	"github.com/auxroom/auxcast/internal/wire"
)

var (
	ErrUnknownTransfer = errors.New("transfer: unknown transfer id")
	ErrNotComplete     = errors.New("transfer: not complete")
)

type pending struct {
	total    int
	frames   []string
	filled   []bool
	received int
	meta     wire.Meta
}

// Table accumulates in-flight transfers until they can be assembled.
// It is confined to the session loop and needs no locking. An aborted
// sender leaves its entry here forever; that is an accepted gap, bounded
// only by process lifetime.
type Table struct {
	pending    map[string]*pending
	onComplete func(*domain.Item)
}

// NewTable wires the exactly-once completion callback. onComplete fires
// from inside PutFrame, on the same goroutine.
func NewTable(onComplete func(*domain.Item)) *Table {
	return &Table{
		pending:    make(map[string]*pending),
		onComplete: onComplete,
	}
}

func (t *Table) Has(id string) bool {
	_, ok := t.pending[id]
	return ok
}

// Begin creates the slot array for a transfer. A second Begin with the same
// id discards any partial state and restarts the transfer.
func (t *Table) Begin(id string, totalFrames int, meta wire.Meta) {
	if totalFrames < 1 {
		log.Warn().Str("module", "transfer").Str("transfer_id", id).Int("total", totalFrames).Msg("begin with bad frame count")
		return
	}
	if _, ok := t.pending[id]; ok {
		log.Warn().Str("module", "transfer").Str("transfer_id", id).Msg("restarting transfer")
	}
	t.pending[id] = &pending{
		total:  totalFrames,
		frames: make([]string, totalFrames),
		filled: make([]bool, totalFrames),
		meta:   meta,
	}
}

// PutFrame stores data at its index regardless of arrival order. A slot is
// counted the first time it fills; duplicates are dropped. Filling the last
// slot assembles the item, removes the entry and fires the completion
// callback once.
func (t *Table) PutFrame(id string, index int, data string) {
	p, ok := t.pending[id]
	if !ok {
		log.Debug().Str("module", "transfer").Str("transfer_id", id).Msg("frame for unknown transfer dropped")
		return
	}
	if index < 0 || index >= p.total {
		log.Warn().Str("module", "transfer").Str("transfer_id", id).Int("index", index).Int("total", p.total).Msg("frame index out of range")
		return
	}
	if p.filled[index] {
		return
	}
	p.frames[index] = data
	p.filled[index] = true
	p.received++
	if p.received < p.total {
		return
	}

	item, err := t.Assemble(id)
	if err != nil {
		log.Error().Err(err).Str("module", "transfer").Str("transfer_id", id).Msg("assemble after last frame")
		return
	}
	log.Info().Str("module", "transfer").Str("transfer_id", id).Int("frames", p.total).Str("name", item.DisplayName).Msg("transfer complete")
	if t.onComplete != nil {
		t.onComplete(item)
	}
}

// IsComplete reports whether every slot of the transfer is filled. A
// transfer that was already assembled is gone and reports false.
func (t *Table) IsComplete(id string) bool {
	p, ok := t.pending[id]
	return ok && p.received == p.total
}

// Assemble joins the frames into the shared item and discards the entry.
// No integrity check is performed on the joined payload.
func (t *Table) Assemble(id string) (*domain.Item, error) {
	p, ok := t.pending[id]
	if !ok {
		return nil, ErrUnknownTransfer
	}
	if p.received != p.total {
		return nil, ErrNotComplete
	}
	delete(t.pending, id)
	return &domain.Item{
		Payload:     codec.Join(p.frames),
		Kind:        p.meta.Kind,
		DisplayName: p.meta.DisplayName,
		AddedBy:     p.meta.AddedBy,
	}, nil
}

// Received reports the filled-slot count for progress display.
func (t *Table) Received(id string) (received, total int, ok bool) {
	p, found := t.pending[id]
	if !found {
		return 0, 0, false
	}
	return p.received, p.total, true
}
