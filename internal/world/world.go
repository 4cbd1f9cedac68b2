// Package world maintains the live game world model: connected players,
// lobby membership, teams, chat, kills and votes, reconciled from typed
// console events and enriched asynchronously from the Steam Web API.
//
// A World is owned by a single goroutine. Console lines and Update ticks
// must be serialized by the caller; under that discipline no internal
// locking is needed or performed.
package world

import (
	"context"
	"log/slog"
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/leighmacdonald/tf-world/internal/steamapi"
	"github.com/leighmacdonald/tf-world/internal/tf"
	"github.com/leighmacdonald/tf-world/internal/tf/events"
	"golang.org/x/time/rate"
)

// Suppress connection time changes smaller than this. Repeated status polls
// round the connection age inconsistently and would otherwise make the value
// jitter.
const connectionTimeJitter = 2 * time.Second

// Friends lists are refreshed at most this often.
const friendsUpdateInterval = 5 * time.Minute

// New creates an empty world for one tracked game session. client may be nil
// when no API credentials are configured; enrichment stays pending until one
// is supplied via SetClient.
func New(localID steamid.SteamID, parser LineParser, client *steamapi.Client) *World {
	world := &World{
		localID:          localID,
		parser:           parser,
		client:           client,
		players:          make(map[steamid.SteamID]*Player),
		consoleListeners: newListenerSet[ConsoleLineListener](),
		eventListeners:   newListenerSet[EventListener](),
		friendsLimiter:   rate.NewLimiter(rate.Every(friendsUpdateInterval), 1),
		now:              time.Now,
	}

	world.summaryUpdates = newUpdateQueue("player summaries",
		func(ctx context.Context, client *steamapi.Client, steamIDs steamid.Collection) ([]steamapi.PlayerSummary, error) {
			return client.PlayerSummaries(ctx, steamIDs)
		},
		func(summary steamapi.PlayerSummary) steamid.SteamID {
			sid := summary.SID()
			world.findOrCreatePlayer(sid).summary = &summary

			return sid
		})

	world.bansUpdates = newUpdateQueue("player bans",
		func(ctx context.Context, client *steamapi.Client, steamIDs steamid.Collection) ([]steamapi.PlayerBans, error) {
			return client.PlayerBanStates(ctx, steamIDs)
		},
		func(bans steamapi.PlayerBans) steamid.SteamID {
			sid := bans.SID()
			world.findOrCreatePlayer(sid).bans = &bans

			return sid
		})

	// The world consumes its own dispatched lines, like any other listener.
	world.AddConsoleLineListener(world)

	return world
}

// World is the registry aggregate for one game session.
type World struct {
	localID steamid.SteamID
	parser  LineParser
	client  *steamapi.Client

	players      map[steamid.SteamID]*Player
	currentLobby []events.Member
	pendingLobby []events.Member

	lastStatusUpdate       time.Time
	localPlayerInitialized bool
	voteInProgress         bool

	summaryUpdates *updateQueue[steamapi.PlayerSummary]
	bansUpdates    *updateQueue[steamapi.PlayerBans]

	friends         map[steamid.SteamID]struct{}
	friendsLimiter  *rate.Limiter
	friendsInFlight chan friendsResult

	consoleListeners *listenerSet[ConsoleLineListener]
	eventListeners   *listenerSet[EventListener]

	now func() time.Time
}

func (w *World) LocalSteamID() steamid.SteamID {
	return w.localID
}

func (w *World) IsLocalPlayerInitialized() bool {
	return w.localPlayerInitialized
}

func (w *World) IsVoteInProgress() bool {
	return w.voteInProgress
}

// LastStatusUpdate is the high water mark across all player status updates.
func (w *World) LastStatusUpdate() time.Time {
	return w.lastStatusUpdate
}

// SetClient swaps the API client, enabling enrichment when credentials
// become available after startup. Owner goroutine only.
func (w *World) SetClient(client *steamapi.Client) {
	w.client = client
}

// Update drives one tick of all asynchronous work: launching and polling the
// batched enrichment requests and the friends list refresh. It never blocks.
// The client is snapshotted here so requests launched this tick are unaffected
// by a later SetClient.
func (w *World) Update(ctx context.Context) {
	client := w.client
	w.summaryUpdates.update(ctx, client)
	w.bansUpdates.update(ctx, client)
	w.updateFriends(ctx)
}

// OnConsoleLineParsed is the world state machine. One typed event mutates
// the registry and may notify world event listeners.
//
//nolint:cyclop
func (w *World) OnConsoleLineParsed(_ *World, event events.Event) {
	switch data := event.Data.(type) {
	case events.LobbyHeaderEvent:
		w.currentLobby = make([]events.Member, data.MemberCount)
		w.pendingLobby = make([]events.Member, data.PendingCount)
	case events.LobbyStatusFailedEvent:
		if len(w.currentLobby) > 0 || len(w.pendingLobby) > 0 {
			w.clearLobbyState()
		}
	case events.LobbyChangedEvent:
		w.onLobbyChanged(data)
	case events.HostNewGameEvent, events.ConnectingEvent, events.ServerSpawnEvent:
		w.onGameTransition()
	case events.ConfigExecEvent:
		w.onConfigExec(data)
	case events.ChatEvent:
		w.onChat(data)
	case events.DropEvent:
		w.onDrop(data)
	case events.LobbyMemberEvent:
		w.onLobbyMember(data.Member)
	case events.PingEvent:
		if sid, found := w.FindSteamIDForName(data.Name); found {
			w.findOrCreatePlayer(sid).setPing(data.Ping, event.Timestamp)
		}
	case events.StatusEvent:
		w.onStatus(data, event.Timestamp)
	case events.StatusShortEvent:
		if sid, found := w.FindSteamIDForName(data.Name); found {
			w.findOrCreatePlayer(sid).clientIndex = data.ClientIndex
		}
	case events.KillEvent:
		w.onKill(data)
	case events.UserMessageEvent:
		w.onUserMessage(data)
	}
}

func (w *World) OnConsoleLineUnparsed(_ *World, _ string) {}

func (w *World) clearLobbyState() {
	w.currentLobby = nil
	w.pendingLobby = nil
	w.players = make(map[steamid.SteamID]*Player)
}

func (w *World) onLobbyChanged(data events.LobbyChangedEvent) {
	if data.Change == events.LobbyCreated {
		w.clearLobbyState()
	}

	if data.Change == events.LobbyCreated || data.Change == events.LobbyUpdated {
		// Client indices cannot be trusted across a lobby mutation.
		for _, player := range w.players {
			player.clientIndex = 0
		}
	}
}

func (w *World) onGameTransition() {
	if w.localPlayerInitialized {
		w.localPlayerInitialized = false
		w.forEachEventListener(func(listener EventListener) {
			listener.OnLocalPlayerInitialized(w, false)
		})
	}

	w.voteInProgress = false
}

func (w *World) onConfigExec(data events.ConfigExecEvent) {
	class, found := tf.ClassFromConfig(data.ConfigName)
	if !found {
		return
	}

	slog.Debug("Local player spawned", slog.String("class", class.String()))

	w.forEachEventListener(func(listener EventListener) {
		listener.OnLocalPlayerSpawned(w, class)
	})

	if !w.localPlayerInitialized {
		w.localPlayerInitialized = true
		w.forEachEventListener(func(listener EventListener) {
			listener.OnLocalPlayerInitialized(w, true)
		})
	}
}

func (w *World) onChat(data events.ChatEvent) {
	sid, found := w.FindSteamIDForName(data.Player)
	if !found {
		slog.Warn("Dropped chat message with unknown steam id",
			slog.String("name", data.Player), slog.String("message", data.Message))

		return
	}

	player := w.FindPlayer(sid)
	if player == nil {
		slog.Warn("Dropped chat message with unknown player record",
			slog.String("name", data.Player), slog.String("steam_id", sid.String()),
			slog.String("message", data.Message))

		return
	}

	w.forEachEventListener(func(listener EventListener) {
		listener.OnChatMsg(w, player, data.Message)
	})
}

func (w *World) onDrop(data events.DropEvent) {
	sid, found := w.FindSteamIDForName(data.Player)
	if !found {
		slog.Warn("Dropped \"player dropped\" message with unknown steam id",
			slog.String("name", data.Player))

		return
	}

	player := w.FindPlayer(sid)
	if player == nil {
		slog.Warn("Dropped \"player dropped\" message with unknown player record",
			slog.String("name", data.Player), slog.String("steam_id", sid.String()))

		return
	}

	w.forEachEventListener(func(listener EventListener) {
		listener.OnPlayerDroppedFromServer(w, player, data.Reason)
	})
}

func (w *World) onLobbyMember(member events.Member) {
	// The header already sized the sequences; anything outside is stale.
	if member.Pending {
		if member.Index < len(w.pendingLobby) {
			w.pendingLobby[member.Index] = member
		}
	} else {
		if member.Index < len(w.currentLobby) {
			w.currentLobby[member.Index] = member
		}
	}

	w.findOrCreatePlayer(member.SteamID).team = member.Team.Color()
}

func (w *World) onStatus(data events.StatusEvent, timestamp time.Time) {
	player := w.findOrCreatePlayer(data.SteamID)

	newStatus := Status{
		SteamID:        data.SteamID,
		Name:           data.Name,
		UserID:         data.UserID,
		ConnectionTime: timestamp.Add(-data.Connected),
		State:          data.State,
		Ping:           data.Ping,
		Loss:           data.Loss,
		Address:        data.Address,
	}

	// Don't introduce stutter to the connection time.
	if delta := player.status.ConnectionTime.Sub(newStatus.ConnectionTime); delta > -connectionTimeJitter && delta < connectionTimeJitter {
		newStatus.ConnectionTime = player.status.ConnectionTime
	}

	player.setStatus(newStatus, timestamp)

	if player.lastStatusUpdate.After(w.lastStatusUpdate) {
		w.lastStatusUpdate = player.lastStatusUpdate
	}

	w.forEachEventListener(func(listener EventListener) {
		listener.OnPlayerStatusUpdate(w, player)
	})
}

func (w *World) onKill(data events.KillEvent) {
	attackerSID, attackerFound := w.FindSteamIDForName(data.Attacker)
	victimSID, victimFound := w.FindSteamIDForName(data.Victim)

	if attackerFound {
		attacker := w.findOrCreatePlayer(attackerSID)
		attacker.scores.Kills++

		if victimFound && victimSID.Equal(w.localID) {
			attacker.scores.LocalKills++
		}
	}

	if victimFound {
		victim := w.findOrCreatePlayer(victimSID)
		victim.scores.Deaths++

		if attackerFound && attackerSID.Equal(w.localID) {
			victim.scores.LocalDeaths++
		}
	}
}

func (w *World) onUserMessage(data events.UserMessageEvent) {
	switch data.Type {
	case events.UserMessageVoteStart:
		w.voteInProgress = true
	case events.UserMessageVotePass, events.UserMessageVoteFailed:
		w.voteInProgress = false
	}
}
