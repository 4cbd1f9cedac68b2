// Package tf holds game-level types shared by the world tracker.
package tf

import "strings"

const (
	// Max number of players supported by the game.
	MaxPlayerCount = 102
	// In game max message length.
	MaxMessageLength = 127
)

type Team int

const (
	UNASSIGNED Team = iota
	SPEC
	BLU
	RED
)

// LobbyTeam is the matchmaking team designation reported by tf_lobby_debug.
// It maps onto the in-game Team via Color.
type LobbyTeam int

const (
	LobbyTeamInvaders LobbyTeam = iota
	LobbyTeamDefenders
)

func (t LobbyTeam) Opposite() LobbyTeam {
	if t == LobbyTeamInvaders {
		return LobbyTeamDefenders
	}

	return LobbyTeamInvaders
}

// Color returns the in-game team colour for a lobby team. Defenders are
// always RED in casual matchmaking.
func (t LobbyTeam) Color() Team {
	if t == LobbyTeamDefenders {
		return RED
	}

	return BLU
}

func (t LobbyTeam) String() string {
	if t == LobbyTeamDefenders {
		return "TF_GC_TEAM_DEFENDERS"
	}

	return "TF_GC_TEAM_INVADERS"
}

type PlayerClass int

const (
	ClassUndefined PlayerClass = iota
	ClassScout
	ClassSniper
	ClassSoldier
	ClassDemoman
	ClassMedic
	ClassHeavy
	ClassPyro
	ClassSpy
	ClassEngineer
)

func (c PlayerClass) String() string {
	switch c {
	case ClassScout:
		return "scout"
	case ClassSniper:
		return "sniper"
	case ClassSoldier:
		return "soldier"
	case ClassDemoman:
		return "demoman"
	case ClassMedic:
		return "medic"
	case ClassHeavy:
		return "heavy"
	case ClassPyro:
		return "pyro"
	case ClassSpy:
		return "spy"
	case ClassEngineer:
		return "engineer"
	case ClassUndefined:
		fallthrough
	default:
		return "undefined"
	}
}

// classConfigs maps the per-class config files the client execs on spawn to
// the class being spawned as. Only these nine exact names count, anything
// else execed is unrelated to spawning.
var classConfigs = map[string]PlayerClass{
	"scout.cfg":        ClassScout,
	"sniper.cfg":       ClassSniper,
	"soldier.cfg":      ClassSoldier,
	"demoman.cfg":      ClassDemoman,
	"medic.cfg":        ClassMedic,
	"heavyweapons.cfg": ClassHeavy,
	"pyro.cfg":         ClassPyro,
	"spy.cfg":          ClassSpy,
	"engineer.cfg":     ClassEngineer,
}

// ClassFromConfig resolves an execed config file name to the spawned class.
func ClassFromConfig(configName string) (PlayerClass, bool) {
	class, found := classConfigs[strings.ToLower(configName)]

	return class, found
}
