package world

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/leighmacdonald/tf-world/internal/store"
	"github.com/leighmacdonald/tf-world/internal/tf/events"
)

// BlackBox records chat and kill activity to long term storage. Register it
// as both a console line listener and an event listener on the world it
// should record.
type BlackBox struct {
	NopEventListener

	db       *store.Queries
	validIDs []steamid.SteamID
}

func NewBlackBox(db *store.Queries) *BlackBox {
	return &BlackBox{db: db}
}

// ensureSID handles making sure the players steam_id FK is satisfied.
func (b *BlackBox) ensureSID(ctx context.Context, sid steamid.SteamID, name string) error {
	if slices.Contains(b.validIDs, sid) {
		return nil
	}

	now := time.Now().Unix()
	if err := b.db.InsertPlayer(ctx, store.InsertPlayerParams{
		SteamID:   sid.Int64(),
		Name:      name,
		CreatedOn: now,
		UpdatedOn: now,
	}); err != nil {
		return err
	}

	b.validIDs = append(b.validIDs, sid)

	return nil
}

func (b *BlackBox) OnConsoleLineParsed(world *World, event events.Event) {
	switch data := event.Data.(type) {
	case events.KillEvent:
		b.recordKill(world, data, event.Timestamp)
	case events.ChatEvent:
		b.recordChat(world, data, event.Timestamp)
	}
}

func (b *BlackBox) OnConsoleLineUnparsed(_ *World, _ string) {}

func (b *BlackBox) recordKill(world *World, kill events.KillEvent, timestamp time.Time) {
	sourceID, sourceFound := world.FindSteamIDForName(kill.Attacker)
	victimID, victimFound := world.FindSteamIDForName(kill.Victim)

	if !sourceFound || !victimFound {
		return
	}

	ctx := context.Background()

	crit := int64(0)
	if kill.Crit {
		crit = 1
	}

	err := b.ensureSID(ctx, sourceID, kill.Attacker)
	if err == nil {
		err = b.ensureSID(ctx, victimID, kill.Victim)
	}

	if err == nil {
		err = b.db.InsertKill(ctx, store.InsertKillParams{
			SourceID:  sourceID.Int64(),
			VictimID:  victimID.Int64(),
			Weapon:    kill.Weapon,
			Crit:      crit,
			CreatedOn: timestamp.Unix(),
		})
	}

	if err != nil {
		slog.Error("Failed to record kill", slog.String("error", err.Error()))
	}
}

// recordChat uses the parsed event rather than the chat callback so the team
// and dead markers survive into storage.
func (b *BlackBox) recordChat(world *World, chat events.ChatEvent, timestamp time.Time) {
	sid, found := world.FindSteamIDForName(chat.Player)
	if !found {
		return
	}

	ctx := context.Background()

	if err := b.ensureSID(ctx, sid, chat.Player); err != nil {
		slog.Error("Failed to record chat author", slog.String("error", err.Error()))

		return
	}

	teamOnly := int64(0)
	if chat.TeamOnly {
		teamOnly = 1
	}

	dead := int64(0)
	if chat.Dead {
		dead = 1
	}

	if err := b.db.InsertChat(ctx, store.InsertChatParams{
		SteamID:   sid.Int64(),
		Name:      chat.Player,
		Message:   chat.Message,
		TeamOnly:  teamOnly,
		Dead:      dead,
		CreatedOn: timestamp.Unix(),
	}); err != nil {
		slog.Error("Failed to record chat message", slog.String("error", err.Error()))
	}
}

// OnPlayerStatusUpdate keeps the stored player names current.
func (b *BlackBox) OnPlayerStatusUpdate(_ *World, player *Player) {
	ctx := context.Background()

	now := time.Now().Unix()
	sid := player.SteamID()
	if err := b.db.InsertPlayer(ctx, store.InsertPlayerParams{
		SteamID:   sid.Int64(),
		Name:      player.Name(),
		CreatedOn: now,
		UpdatedOn: now,
	}); err != nil {
		slog.Error("Failed to record player", slog.String("error", err.Error()))
	}
}
