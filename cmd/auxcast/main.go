package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxcast/internal/channel"
	"github.com/auxroom/auxcast/internal/config"
	"github.com/auxroom/auxcast/internal/domain"
	"github.com/auxroom/auxcast/internal/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	self := domain.ParticipantID(fmt.Sprintf("%s-%s", cfg.Username, uuid.NewString()[:8]))
	url := fmt.Sprintf("%s/%s", cfg.RelayURL, cfg.Room)

	ch, err := channel.Dial(ctx, url)
	if err != nil {
		log.Fatal().Err(err).Str("url", url).Msg("relay dial failed")
	}
	defer ch.Close()

	orch := session.New(session.Config{
		MaxFrameSize: cfg.MaxFrameSize,
		FramePacing:  cfg.FramePacing,
		SyncDelayMin: cfg.SyncDelayMin,
		SyncDelayMax: cfg.SyncDelayMax,
		ReactionTTL:  cfg.ReactionTTL,
	}, self, ch, &spoolSink{dir: cfg.SpoolDir})
	orch.OnProgress = func(sent, total int) {
		fmt.Printf("\rsending %d/%d frames", sent, total)
		if sent == total {
			fmt.Println()
		}
	}
	orch.OnError = func(err error) {
		fmt.Printf("transfer failed: %v\n", err)
	}

	go func() {
		if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("session ended")
		}
		cancel()
	}()

	log.Info().Str("room", cfg.Room).Str("self", string(self)).Msg("joined room")
	repl(ctx, orch, self)
}

func repl(ctx context.Context, orch *session.Orchestrator, self domain.ParticipantID) {
	fmt.Println("commands: share <file> [name] | play | pause | stop | react <symbol> | status | quit")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "share":
			if len(fields) < 2 {
				fmt.Println("usage: share <file> [name]")
				continue
			}
			err = share(ctx, orch, self, fields[1:])
		case "play":
			err = orch.Play(ctx)
		case "pause":
			err = orch.Pause(ctx)
		case "stop":
			err = orch.Stop(ctx)
		case "react":
			if len(fields) < 2 {
				fmt.Println("usage: react <symbol>")
				continue
			}
			err = orch.React(ctx, fields[1])
		case "status":
			err = status(ctx, orch)
		case "quit":
			return
		default:
			fmt.Printf("unknown command %q\n", fields[0])
			continue
		}
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func share(ctx context.Context, orch *session.Orchestrator, self domain.ParticipantID, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	name := filepath.Base(args[0])
	if len(args) > 1 {
		name = strings.Join(args[1:], " ")
	}
	item, err := domain.NewItem(base64.StdEncoding.EncodeToString(raw), domain.KindAudio, name, self)
	if err != nil {
		return err
	}
	return orch.ShareItem(ctx, item)
}

func status(ctx context.Context, orch *session.Orchestrator) error {
	snap, err := orch.Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("role=%s holder=%s playing=%v busy=%v\n", snap.Role, snap.Aux.Holder, snap.Aux.Playing, snap.Busy)
	if snap.Aux.Current != nil {
		fmt.Printf("current=%q from=%s (%d chars)\n", snap.Aux.Current.DisplayName, snap.Aux.Current.AddedBy, len(snap.Aux.Current.Payload))
	}
	if reactions := orch.Reactions(); len(reactions) > 0 {
		for _, r := range reactions {
			fmt.Printf("  %s from %s\n", r.Symbol, r.Sender)
		}
	}
	return nil
}

// spoolSink stands in for a real player: incoming items are decoded into a
// spool directory and transport changes are printed.
type spoolSink struct {
	dir string
}

func (s *spoolSink) Load(item *domain.Item) {
	raw, err := base64.StdEncoding.DecodeString(item.Payload)
	if err != nil {
		// Short external references are not base64; nothing to spool.
		fmt.Printf("now loaded: %q (%s)\n", item.DisplayName, item.Payload)
		return
	}
	name := filepath.Join(s.dir, filepath.Base(item.DisplayName))
	if err := os.WriteFile(name, raw, 0o644); err != nil {
		log.Error().Err(err).Str("module", "sink").Str("file", name).Msg("spool write failed")
		return
	}
	fmt.Printf("now loaded: %q -> %s (%d bytes)\n", item.DisplayName, name, len(raw))
}

func (s *spoolSink) SetPlaying(playing bool) {
	if playing {
		fmt.Println("playing")
		return
	}
	fmt.Println("paused")
}

func (s *spoolSink) Stop() {
	fmt.Println("stopped")
}
