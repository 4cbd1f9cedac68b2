package world

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/leighmacdonald/tf-world/internal/steamapi"
	"github.com/leighmacdonald/tf-world/internal/tf"
	"github.com/leighmacdonald/tf-world/internal/tf/events"
)

// Status is the most recent `status` row seen for a player.
type Status struct {
	SteamID steamid.SteamID
	Name    string
	UserID  int
	// ConnectionTime is the point in time the player connected to the
	// server, derived from the connection age column.
	ConnectionTime time.Time
	State          string
	Ping           int
	Loss           int
	Address        string
}

type Scores struct {
	Kills  int
	Deaths int
	// Kills where the victim was the local player.
	LocalKills int
	// Deaths where the attacker was the local player.
	LocalDeaths int
}

// Player is the tracked record for a single steam id. Records are created
// lazily on first reference and live until the next full lobby reset.
// All access must happen on the world owner goroutine.
type Player struct {
	world       *World
	status      Status
	clientIndex int
	team        tf.Team
	scores      Scores

	lastStatusUpdate      time.Time
	lastPingUpdate        time.Time
	lastStatusActiveBegin time.Time

	summary          *steamapi.PlayerSummary
	bans             *steamapi.PlayerBans
	playtime         *time.Duration
	playtimeInFlight chan playtimeResult
	playtimeFetched  bool

	userData map[any]any
}

func newPlayer(world *World, sid steamid.SteamID) *Player {
	player := &Player{world: world}
	player.status.SteamID = sid

	return player
}

func (p *Player) SteamID() steamid.SteamID {
	return p.status.SteamID
}

func (p *Player) Name() string {
	return p.status.Name
}

func (p *Player) Status() Status {
	return p.status
}

func (p *Player) Team() tf.Team {
	return p.team
}

func (p *Player) Scores() Scores {
	return p.scores
}

func (p *Player) ClientIndex() int {
	return p.clientIndex
}

// UserID returns the server assigned user id, when one has been seen.
func (p *Player) UserID() (int, bool) {
	if p.status.UserID > 0 {
		return p.status.UserID, true
	}

	return 0, false
}

func (p *Player) LastStatusUpdate() time.Time {
	return p.lastStatusUpdate
}

func (p *Player) LastPingUpdate() time.Time {
	return p.lastPingUpdate
}

// ConnectedDuration is how long the player has been connected as of now.
// Never negative, even when the debounced connection time drifts slightly
// ahead of the clock.
func (p *Player) ConnectedDuration(now time.Time) time.Duration {
	return max(now.Sub(p.status.ConnectionTime), 0)
}

// ActiveDuration is how long the player has been in the active state, zero
// when spawning or disconnected.
func (p *Player) ActiveDuration() time.Duration {
	if p.status.State != "active" {
		return 0
	}

	return p.lastStatusUpdate.Sub(p.lastStatusActiveBegin)
}

// ConnectedAge renders the connection time for display.
func (p *Player) ConnectedAge(now time.Time) string {
	return humanize.RelTime(p.status.ConnectionTime, now, "", "")
}

// IsFriend is true when the player appears in the local player's friends
// snapshot.
func (p *Player) IsFriend() bool {
	return p.world.IsFriend(p.SteamID())
}

// LobbyMember finds the lobby slot currently bound to this player.
func (p *Player) LobbyMember() (events.Member, bool) {
	return p.world.findLobbyMember(p.SteamID())
}

// Summary returns the steam profile summary when it has been fetched. A miss
// queues the id for the next batched summary request and reports false.
func (p *Player) Summary() (steamapi.PlayerSummary, bool) {
	if p.summary != nil {
		return *p.summary, true
	}

	p.world.summaryUpdates.queue(p.SteamID())

	return steamapi.PlayerSummary{}, false
}

// Bans returns the steam ban record when it has been fetched, queueing a
// fetch otherwise.
func (p *Player) Bans() (steamapi.PlayerBans, bool) {
	if p.bans != nil {
		return *p.bans, true
	}

	p.world.bansUpdates.queue(p.SteamID())

	return steamapi.PlayerBans{}, false
}

type playtimeResult struct {
	playtime time.Duration
	err      error
}

// Playtime returns total TF2 playtime once the on-demand fetch completes.
// The first read with an API client configured starts the fetch; if no
// client was available yet the fetch is retried on a later read.
func (p *Player) Playtime() (time.Duration, bool) {
	if p.playtime != nil {
		return *p.playtime, true
	}

	if !p.playtimeFetched && p.world.client != nil {
		p.playtimeFetched = true

		var (
			client = p.world.client
			sid    = p.SteamID()
			result = make(chan playtimeResult, 1)
		)

		go func() {
			playtime, errPlaytime := client.TF2Playtime(context.Background(), sid)
			result <- playtimeResult{playtime: playtime, err: errPlaytime}
		}()

		p.playtimeInFlight = result
	}

	if p.playtimeInFlight != nil {
		select {
		case res := <-p.playtimeInFlight:
			p.playtimeInFlight = nil
			if res.err != nil {
				sid := p.SteamID()
				slog.Error("Failed to fetch playtime",
					slog.String("steam_id", sid.String()), slog.String("error", res.err.Error()))
			} else {
				p.playtime = &res.playtime
			}
		default:
		}
	}

	if p.playtime != nil {
		return *p.playtime, true
	}

	return 0, false
}

// PlaytimeHuman renders fetched playtime in whole hours, empty until known.
func (p *Player) PlaytimeHuman() string {
	playtime, found := p.Playtime()
	if !found {
		return ""
	}

	return humanize.Comma(int64(playtime.Hours())) + "h"
}

func (p *Player) setStatus(status Status, timestamp time.Time) {
	if p.status.State != "active" && status.State == "active" {
		p.lastStatusActiveBegin = timestamp
	}

	p.status = status
	p.lastStatusUpdate = timestamp
	p.lastPingUpdate = timestamp
}

func (p *Player) setPing(ping int, timestamp time.Time) {
	p.status.Ping = ping
	p.lastPingUpdate = timestamp
}

// SetData attaches an arbitrary value to a player under a caller owned
// capability key, the same way context values are keyed. Collaborators use
// this to store derived per-player data without the core knowing its type.
func SetData(player *Player, key any, value any) {
	if player.userData == nil {
		player.userData = make(map[any]any)
	}

	player.userData[key] = value
}

// Data retrieves a value stored with SetData, reporting false on a missing
// key or a type mismatch.
func Data[T any](player *Player, key any) (T, bool) {
	var zero T

	value, found := player.userData[key]
	if !found {
		return zero, false
	}

	cast, ok := value.(T)
	if !ok {
		return zero, false
	}

	return cast, true
}
