package events

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/leighmacdonald/tf-world/internal/tf"
)

const (
	teamPrefix     = "(TEAM) "
	deadPrefix     = "*DEAD* "
	deadTeamPrefix = "*DEAD*(TEAM) "
	// con_timestamp prefix format.
	logTimestampFormat = "01/02/2006 - 15:04:05"
)

var (
	ErrNoMatch        = errors.New("no match found")
	ErrParseTimestamp = errors.New("failed to parse timestamp")
	ErrDuration       = errors.New("failed to parse connected duration")
)

func NewParser() *Parser {
	return &Parser{
		rxTimestamp: regexp.MustCompile(`^(?P<dt>[01]\d/[0123]\d/20\d{2} - \d{2}:\d{2}:\d{2}):\s`),
		// the index must match the index of the EventType const values
		rx: []*regexp.Regexp{
			regexp.MustCompile(`^CTFLobbyShared: ID:([0-9a-fA-F]+)\s+(\d+) member\(s\), (\d+) pending$`),
			regexp.MustCompile(`^\s+(Member|Pending)\[(\d+)]\s+(\[U:\d:\d+])\s+team = (TF_GC_TEAM_\w+)\s+type = (\w+)$`),
			regexp.MustCompile(`^Lobby (created|updated|destroyed)$`),
			regexp.MustCompile(`^Failed to find lobby shared object$`),
			regexp.MustCompile(`^(.+?) :  (.+)$`),
			regexp.MustCompile(`^(.+?) killed (.+?) with (.+?)\.(?: \((crit)\))?$`),
			regexp.MustCompile(`^Dropped (.+?) from server \((.+?)\)$`),
			regexp.MustCompile(`^execing (.+?)$`),
			regexp.MustCompile(`^Connecting to (.+)$`),
			regexp.MustCompile(`^---- Host_NewGame ----$`),
			regexp.MustCompile(`^Client reached server_spawn\.$`),
			regexp.MustCompile(`^#\s{1,6}(\d{1,6})\s"(.+?)"\s+(\[U:\d:\d{1,10}])\s{1,8}(\d{1,3}:\d{2}(?::\d{2})?)\s+(\d{1,4})\s{1,8}(\d{1,3})\s(spawning|active)(?:\s+(\S+))?$`),
			regexp.MustCompile(`^#\s*(\d{1,6})\s"(.+)"$`),
			regexp.MustCompile(`^ *(\d{1,4}) ms : (.{1,32})$`),
			regexp.MustCompile(`^Msg from ([\d.:]+): svc_UserMessage: type (\d+), bytes (\d+)$`),
		},
	}
}

// Parser converts raw console lines into typed Events. It is stateless and
// safe to share.
type Parser struct {
	rxTimestamp *regexp.Regexp
	rx          []*regexp.Regexp
}

// Parse attempts to match a single console line. Lines carry a timestamp
// prefix only when con_timestamp is enabled, so when none is present the
// event is stamped with the caller supplied time instead.
func (p *Parser) Parse(line string, now time.Time) (Event, error) {
	event := Event{Raw: line, Timestamp: now}

	if match := p.rxTimestamp.FindStringSubmatch(line); match != nil {
		parsed, errParse := parseTimestamp(match[1])
		if errParse != nil {
			slog.Error("Failed to parse timestamp", slog.String("error", errParse.Error()))
		} else {
			event.Timestamp = parsed
		}

		line = line[len(match[0]):]
	}

	for parserIdx, rxMatcher := range p.rx {
		match := rxMatcher.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		event.Type = EventType(parserIdx)

		data, errData := p.decode(event.Type, match, line)
		if errData != nil {
			slog.Error("Failed to decode console line",
				slog.String("line", line), slog.String("error", errData.Error()))

			continue
		}

		event.Data = data

		return event, nil
	}

	event.Type = Any

	return event, ErrNoMatch
}

//nolint:cyclop
func (p *Parser) decode(eventType EventType, match []string, line string) (any, error) {
	switch eventType { //nolint:exhaustive
	case LobbyHeader:
		memberCount, errMembers := strconv.Atoi(match[2])
		if errMembers != nil {
			return nil, errMembers
		}

		pendingCount, errPending := strconv.Atoi(match[3])
		if errPending != nil {
			return nil, errPending
		}

		return LobbyHeaderEvent{LobbyID: match[1], MemberCount: memberCount, PendingCount: pendingCount}, nil
	case LobbyMember:
		return parseLobbyMember(match)
	case LobbyChanged:
		return parseLobbyChanged(match[1])
	case LobbyStatusFailed:
		return LobbyStatusFailedEvent{}, nil
	case Chat:
		return parseChat(match), nil
	case Kill:
		return KillEvent{Attacker: match[1], Victim: match[2], Weapon: match[3], Crit: match[4] == "crit"}, nil
	case ServerDroppedPlayer:
		return DropEvent{Player: match[1], Reason: match[2]}, nil
	case ConfigExec:
		return ConfigExecEvent{ConfigName: match[1]}, nil
	case Connecting:
		return ConnectingEvent{Address: strings.TrimSuffix(match[1], "...")}, nil
	case HostNewGame:
		return HostNewGameEvent{}, nil
	case ClientReachedServerSpawn:
		return ServerSpawnEvent{}, nil
	case PlayerStatus:
		return parseStatus(match)
	case PlayerStatusShort:
		index, errIndex := strconv.Atoi(match[1])
		if errIndex != nil {
			return nil, errIndex
		}

		return StatusShortEvent{ClientIndex: index, Name: match[2]}, nil
	case Ping:
		ping, errPing := strconv.Atoi(match[1])
		if errPing != nil {
			return nil, errPing
		}

		return PingEvent{Ping: ping, Name: match[2]}, nil
	case UserMessage:
		return parseUserMessage(match)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, line)
	}
}

func parseTimestamp(timestamp string) (time.Time, error) {
	parsedTime, errParse := time.Parse(logTimestampFormat, timestamp)
	if errParse != nil {
		return time.Time{}, errors.Join(errParse, ErrParseTimestamp)
	}

	return parsedTime, nil
}

func parseLobbyMember(match []string) (LobbyMemberEvent, error) {
	index, errIndex := strconv.Atoi(match[2])
	if errIndex != nil {
		return LobbyMemberEvent{}, errIndex
	}

	sid := steamid.New(match[3])
	if !sid.Valid() {
		return LobbyMemberEvent{}, fmt.Errorf("%w: %s", ErrNoMatch, match[3])
	}

	team := tf.LobbyTeamInvaders
	if match[4] == "TF_GC_TEAM_DEFENDERS" {
		team = tf.LobbyTeamDefenders
	}

	return LobbyMemberEvent{Member: Member{
		SteamID: sid,
		Team:    team,
		Pending: match[1] == "Pending",
		Index:   index,
		Type:    match[5],
	}}, nil
}

func parseLobbyChanged(change string) (LobbyChangedEvent, error) {
	switch change {
	case "created":
		return LobbyChangedEvent{Change: LobbyCreated}, nil
	case "updated":
		return LobbyChangedEvent{Change: LobbyUpdated}, nil
	case "destroyed":
		return LobbyChangedEvent{Change: LobbyDestroyed}, nil
	default:
		return LobbyChangedEvent{}, fmt.Errorf("%w: lobby change %s", ErrNoMatch, change)
	}
}

func parseChat(match []string) ChatEvent {
	name := match[1]
	dead := false
	team := false

	if after, ok := strings.CutPrefix(name, deadTeamPrefix); ok {
		name = after
		dead = true
		team = true
	} else if after, ok := strings.CutPrefix(name, deadPrefix); ok {
		name = after
		dead = true
	} else if after, ok := strings.CutPrefix(name, teamPrefix); ok {
		name = after
		team = true
	}

	return ChatEvent{Player: name, Message: match[2], Dead: dead, TeamOnly: team}
}

func parseStatus(match []string) (StatusEvent, error) {
	userID, errUserID := strconv.ParseInt(match[1], 10, 32)
	if errUserID != nil {
		return StatusEvent{}, errUserID
	}

	dur, errDur := parseConnected(match[4])
	if errDur != nil {
		return StatusEvent{}, errDur
	}

	ping, errPing := strconv.ParseInt(match[5], 10, 32)
	if errPing != nil {
		return StatusEvent{}, errPing
	}

	loss, errLoss := strconv.ParseInt(match[6], 10, 32)
	if errLoss != nil {
		return StatusEvent{}, errLoss
	}

	return StatusEvent{
		UserID:    int(userID),
		Name:      match[2],
		SteamID:   steamid.New(match[3]),
		Connected: dur,
		Ping:      int(ping),
		Loss:      int(loss),
		State:     match[7],
		Address:   match[8],
	}, nil
}

func parseUserMessage(match []string) (UserMessageEvent, error) {
	msgType, errType := strconv.Atoi(match[2])
	if errType != nil {
		return UserMessageEvent{}, errType
	}

	byteCount, errBytes := strconv.Atoi(match[3])
	if errBytes != nil {
		return UserMessageEvent{}, errBytes
	}

	return UserMessageEvent{Address: match[1], Type: UserMessageType(msgType), Bytes: byteCount}, nil
}

// parseConnected converts the h:mm:ss / m:ss connection age column into a duration.
func parseConnected(d string) (time.Duration, error) {
	var (
		pcs      = strings.Split(d, ":")
		dur      time.Duration
		parseErr error
	)

	switch len(pcs) {
	case 3:
		dur, parseErr = time.ParseDuration(fmt.Sprintf("%sh%sm%ss", pcs[0], pcs[1], pcs[2]))
	case 2:
		dur, parseErr = time.ParseDuration(fmt.Sprintf("%sm%ss", pcs[0], pcs[1]))
	case 1:
		dur, parseErr = time.ParseDuration(fmt.Sprintf("%ss", pcs[0]))
	default:
		dur = 0
	}

	if parseErr != nil {
		return 0, errors.Join(parseErr, ErrDuration)
	}

	return dur, nil
}
