// Package events defines the typed console line events and the parser that
// produces them from raw log lines.
package events

import (
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/leighmacdonald/tf-world/internal/tf"
)

type EventType int

// The EventType values double as indexes into the parser regex table, so
// their order must match.
const (
	Any EventType = iota - 1
	LobbyHeader
	LobbyMember
	LobbyChanged
	LobbyStatusFailed
	Chat
	Kill
	ServerDroppedPlayer
	ConfigExec
	Connecting
	HostNewGame
	ClientReachedServerSpawn
	PlayerStatus
	PlayerStatusShort
	Ping
	UserMessage
)

// Event is the closed union of everything the parser can produce. Data holds
// exactly one of the payload structs below, keyed by Type.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Raw       string
	Data      any
}

type LobbyChangeType int

const (
	LobbyCreated LobbyChangeType = iota
	LobbyUpdated
	LobbyDestroyed
)

// UserMessageType is the svc_UserMessage payload type id. Only the vote
// messages are interpreted, everything else passes through untouched.
type UserMessageType int

const (
	UserMessageVoteStart  UserMessageType = 46
	UserMessageVotePass   UserMessageType = 47
	UserMessageVoteFailed UserMessageType = 48
)

type LobbyHeaderEvent struct {
	LobbyID      string
	MemberCount  int
	PendingCount int
}

// Member is a single tf_lobby_debug slot entry.
type Member struct {
	SteamID steamid.SteamID
	Team    tf.LobbyTeam
	Pending bool
	Index   int
	Type    string
}

type LobbyMemberEvent struct {
	Member Member
}

type LobbyChangedEvent struct {
	Change LobbyChangeType
}

type LobbyStatusFailedEvent struct{}

type ChatEvent struct {
	Player   string
	Message  string
	Dead     bool
	TeamOnly bool
}

type KillEvent struct {
	Attacker string
	Victim   string
	Weapon   string
	Crit     bool
}

type DropEvent struct {
	Player string
	Reason string
}

type ConfigExecEvent struct {
	ConfigName string
}

type ConnectingEvent struct {
	Address string
}

type HostNewGameEvent struct{}

type ServerSpawnEvent struct{}

// StatusEvent is a full `status` row. Connected is how long the client has
// been on the server at the time the line was printed.
type StatusEvent struct {
	UserID    int
	Name      string
	SteamID   steamid.SteamID
	Connected time.Duration
	Ping      int
	Loss      int
	State     string
	Address   string
}

type StatusShortEvent struct {
	ClientIndex int
	Name        string
}

type PingEvent struct {
	Ping int
	Name string
}

type UserMessageEvent struct {
	Address string
	Type    UserMessageType
	Bytes   int
}
