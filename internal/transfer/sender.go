package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxcast/internal/channel"
	"github.com/auxroom/auxcast/internal/codec"
	"github.com/auxroom/auxcast/internal/domain"
	"github.com/auxroom/auxcast/internal/wire"
)

// Sender paces outbound frame transmission for one transfer at a time.
// Keeping at most one transfer in flight is the caller's job.
type Sender struct {
	MaxFrameSize int
	Pacing       time.Duration
	// OnProgress, if set, is called after each frame with (sent, total).
	// Display only; protocol correctness never depends on it.
	OnProgress func(sent, total int)
}

// SendItem broadcasts item over ch. A payload that fits one frame goes out
// as a single share message with no chunking overhead; anything larger is
// split under a fresh transfer id and sent in ascending index order with a
// pacing delay between frames. A failed broadcast aborts the remaining
// sequence and surfaces the error; no cleanup message is sent, so receivers
// keep a permanently stalled transfer.
func (s *Sender) SendItem(ctx context.Context, ch channel.Channel, item *domain.Item) error {
	if len(item.Payload) == 0 {
		return codec.ErrEmptyPayload
	}
	if len(item.Payload) <= s.MaxFrameSize {
		data, err := wire.Encode(wire.Share{
			Payload:     item.Payload,
			Kind:        item.Kind,
			DisplayName: item.DisplayName,
			ExternalID:  item.ExternalID,
			AddedBy:     item.AddedBy,
		})
		if err != nil {
			return fmt.Errorf("encode share: %w", err)
		}
		return ch.Broadcast(ctx, data)
	}

	frames, err := codec.Split(item.Payload, s.MaxFrameSize)
	if err != nil {
		return err
	}
	id := uuid.NewString()
	meta := wire.Meta{
		DisplayName: item.DisplayName,
		Kind:        item.Kind,
		AddedBy:     item.AddedBy,
	}
	log.Info().Str("module", "transfer").Str("transfer_id", id).Int("frames", len(frames)).Str("name", item.DisplayName).Msg("transfer started")

	for i, frame := range frames {
		data, err := wire.Encode(wire.Chunk{
			TransferID:  id,
			Index:       i,
			TotalFrames: len(frames),
			Data:        frame,
			Meta:        meta,
		})
		if err != nil {
			return fmt.Errorf("encode chunk %d: %w", i, err)
		}
		if err := ch.Broadcast(ctx, data); err != nil {
			return fmt.Errorf("broadcast chunk %d/%d: %w", i+1, len(frames), err)
		}
		if s.OnProgress != nil {
			s.OnProgress(i+1, len(frames))
		}
		if i+1 == len(frames) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.Pacing):
		}
	}
	log.Debug().Str("module", "transfer").Str("transfer_id", id).Msg("transfer sent")
	return nil
}
