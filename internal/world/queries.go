package world

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/leighmacdonald/tf-world/internal/tf"
	"github.com/leighmacdonald/tf-world/internal/tf/events"
)

// TeamShareResult describes the lobby team relationship between two players.
type TeamShareResult int

const (
	// Neither player has a known lobby team.
	TeamShareNeither TeamShareResult = iota
	TeamShareSame
	TeamShareOpposite
)

// FindSteamIDForName resolves an in-game name to a steam id. When several
// records share the name, the one with the most recent status update wins.
// Ties on identical timestamps are implementation defined: map iteration
// order decides, so callers must not rely on any particular winner.
func (w *World) FindSteamIDForName(name string) (steamid.SteamID, bool) {
	var (
		bestSID     steamid.SteamID
		bestUpdated time.Time
		found       bool
	)

	for sid, player := range w.players {
		if player.Name() == name && player.lastStatusUpdate.After(bestUpdated) {
			bestSID = sid
			bestUpdated = player.lastStatusUpdate
			found = true
		}
	}

	return bestSID, found
}

// FindLobbyMemberTeam searches the current slots first, then pending.
func (w *World) FindLobbyMemberTeam(sid steamid.SteamID) (tf.LobbyTeam, bool) {
	for _, member := range w.currentLobby {
		if member.SteamID.Equal(sid) {
			return member.Team, true
		}
	}

	for _, member := range w.pendingLobby {
		if member.SteamID.Equal(sid) {
			return member.Team, true
		}
	}

	return 0, false
}

func (w *World) findLobbyMember(sid steamid.SteamID) (events.Member, bool) {
	for _, member := range w.currentLobby {
		if member.SteamID.Equal(sid) {
			return member, true
		}
	}

	for _, member := range w.pendingLobby {
		if member.SteamID.Equal(sid) {
			return member, true
		}
	}

	return events.Member{}, false
}

// FindUserID returns the server assigned user id for a steam id, when seen.
func (w *World) FindUserID(sid steamid.SteamID) (int, bool) {
	player := w.FindPlayer(sid)
	if player == nil {
		return 0, false
	}

	return player.UserID()
}

// TeamShare compares the lobby teams of two players. Unknown teams on either
// side yield TeamShareNeither. An incomparable pair indicates state machine
// desync and panics.
func (w *World) TeamShare(id0 steamid.SteamID, id1 steamid.SteamID) TeamShareResult {
	team0, found0 := w.FindLobbyMemberTeam(id0)
	team1, found1 := w.FindLobbyMemberTeam(id1)

	if !found0 || !found1 {
		return TeamShareNeither
	}

	switch {
	case team0 == team1:
		return TeamShareSame
	case team0 == team1.Opposite():
		return TeamShareOpposite
	default:
		panic(fmt.Sprintf("unexpected lobby team pair: %v / %v", team0, team1))
	}
}

// LocalTeamShare compares a player's lobby team against the local player's.
func (w *World) LocalTeamShare(sid steamid.SteamID) TeamShareResult {
	return w.TeamShare(sid, w.localID)
}

// FindPlayer returns the record for a steam id, or nil when none exists.
func (w *World) FindPlayer(sid steamid.SteamID) *Player {
	return w.players[sid]
}

func (w *World) findOrCreatePlayer(sid steamid.SteamID) *Player {
	player, found := w.players[sid]
	if !found {
		player = newPlayer(w, sid)
		w.players[sid] = player
	}

	return player
}

// Players yields every tracked player record in unspecified order.
func (w *World) Players() iter.Seq[*Player] {
	return func(yield func(*Player) bool) {
		for _, player := range w.players {
			if !yield(player) {
				return
			}
		}
	}
}

// ApproxLobbyMemberCount is the combined size of both slot sequences,
// counting invalid slots.
func (w *World) ApproxLobbyMemberCount() int {
	return len(w.currentLobby) + len(w.pendingLobby)
}

// LobbyMembers yields the player record behind every valid lobby slot,
// current slots first. Pending entries whose steam id already appears in a
// current slot are suppressed so no player is yielded twice. A valid slot
// without a backing player record indicates desync and panics.
func (w *World) LobbyMembers() iter.Seq[*Player] {
	playerFor := func(member events.Member) *Player {
		player := w.FindPlayer(member.SteamID)
		if player == nil {
			panic(fmt.Sprintf("missing player for lobby member: %s", member.SteamID.String()))
		}

		return player
	}

	return func(yield func(*Player) bool) {
		for _, member := range w.currentLobby {
			if !member.SteamID.Valid() {
				continue
			}

			if !yield(playerFor(member)) {
				return
			}
		}

		for _, member := range w.pendingLobby {
			if !member.SteamID.Valid() {
				continue
			}

			if slices.ContainsFunc(w.currentLobby, func(current events.Member) bool {
				return current.SteamID.Equal(member.SteamID)
			}) {
				continue
			}

			if !yield(playerFor(member)) {
				return
			}
		}
	}
}

// RecentPlayers returns up to count records ordered by last status update,
// newest first. Equal timestamps order by steam id so the result is stable
// across calls.
func (w *World) RecentPlayers(count int) []*Player {
	recent := make([]*Player, 0, len(w.players))
	for _, player := range w.players {
		recent = append(recent, player)
	}

	slices.SortStableFunc(recent, func(a *Player, b *Player) int {
		if cmp := b.lastStatusUpdate.Compare(a.lastStatusUpdate); cmp != 0 {
			return cmp
		}

		sidA, sidB := a.SteamID(), b.SteamID()

		switch {
		case sidA.Int64() < sidB.Int64():
			return -1
		case sidA.Int64() > sidB.Int64():
			return 1
		default:
			return 0
		}
	})

	if len(recent) > count {
		recent = recent[:count]
	}

	return recent
}
