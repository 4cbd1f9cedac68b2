// Package steamapi implements the small slice of the Steam Web API the
// tracker consumes: player summaries, player bans, friend lists and TF2
// playtime.
package steamapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/leighmacdonald/tf-world/internal/encoding"
)

const (
	DefaultBaseURL = "https://api.steampowered.com"
	// Hard request cap imposed by GetPlayerSummaries/GetPlayerBans.
	MaxBatchSize = 100
	// TF2 appid, used for playtime lookups.
	appIDTF2 = 440
)

var (
	ErrRequest    = errors.New("failed to perform steam api request")
	ErrTooManyIDs = errors.New("batched request exceeds 100 steam ids")
)

// APIError carries the HTTP status of a failed Steam API call. 401 means the
// key is bad or the target data is private, which some callers treat as an
// expected condition.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("steam api request failed with status %d", e.StatusCode)
}

// IsUnauthorized reports whether err is an APIError with a 401 status.
func IsUnauthorized(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// HTTPDoer defines a common interface for HTTP clients.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

func New(httpClient HTTPDoer, apiKey string, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

type Client struct {
	httpClient HTTPDoer
	apiKey     string
	baseURL    string
}

type PlayerSummary struct {
	SteamID                  string `json:"steamid"`
	PersonaName              string `json:"personaname"`
	ProfileURL               string `json:"profileurl"`
	Avatar                   string `json:"avatar"`
	AvatarFull               string `json:"avatarfull"`
	PersonaState             int    `json:"personastate"`
	CommunityVisibilityState int    `json:"communityvisibilitystate"`
	ProfileState             int    `json:"profilestate"`
	TimeCreated              int64  `json:"timecreated"`
	LocCountryCode           string `json:"loccountrycode"`
}

func (s PlayerSummary) SID() steamid.SteamID {
	return steamid.New(s.SteamID)
}

type PlayerBans struct {
	SteamID          string `json:"SteamId"`
	CommunityBanned  bool   `json:"CommunityBanned"`
	VACBanned        bool   `json:"VACBanned"`
	NumberOfVACBans  int    `json:"NumberOfVACBans"`
	DaysSinceLastBan int    `json:"DaysSinceLastBan"`
	NumberOfGameBans int    `json:"NumberOfGameBans"`
	EconomyBan       string `json:"EconomyBan"`
}

func (b PlayerBans) SID() steamid.SteamID {
	return steamid.New(b.SteamID)
}

// Banned is true when the player carries any ban marker at all.
func (b PlayerBans) Banned() bool {
	return b.CommunityBanned || b.VACBanned || b.NumberOfGameBans > 0 || b.EconomyBan != "none"
}

// PlayerSummaries fetches profile summaries for up to MaxBatchSize players
// in a single request.
func (c *Client) PlayerSummaries(ctx context.Context, steamIDs steamid.Collection) ([]PlayerSummary, error) {
	if len(steamIDs) == 0 {
		return nil, nil
	}

	if len(steamIDs) > MaxBatchSize {
		return nil, ErrTooManyIDs
	}

	query := url.Values{}
	query.Set("steamids", strings.Join(steamIDs.ToStringSlice(), ","))

	resp, errResp := get[struct {
		Response struct {
			Players []PlayerSummary `json:"players"`
		} `json:"response"`
	}](ctx, c, "/ISteamUser/GetPlayerSummaries/v0002/", query)
	if errResp != nil {
		return nil, errResp
	}

	return resp.Response.Players, nil
}

// PlayerBanStates fetches ban records for up to MaxBatchSize players in a
// single request.
func (c *Client) PlayerBanStates(ctx context.Context, steamIDs steamid.Collection) ([]PlayerBans, error) {
	if len(steamIDs) == 0 {
		return nil, nil
	}

	if len(steamIDs) > MaxBatchSize {
		return nil, ErrTooManyIDs
	}

	query := url.Values{}
	query.Set("steamids", strings.Join(steamIDs.ToStringSlice(), ","))

	resp, errResp := get[struct {
		Players []PlayerBans `json:"players"`
	}](ctx, c, "/ISteamUser/GetPlayerBans/v1/", query)
	if errResp != nil {
		return nil, errResp
	}

	return resp.Players, nil
}

// FriendList fetches the friend list of the given player. Returns a 401
// APIError when the list is not visible.
func (c *Client) FriendList(ctx context.Context, steamID steamid.SteamID) (steamid.Collection, error) {
	query := url.Values{}
	query.Set("steamid", steamID.String())
	query.Set("relationship", "friend")

	resp, errResp := get[struct {
		FriendsList struct {
			Friends []struct {
				SteamID      string `json:"steamid"`
				Relationship string `json:"relationship"`
				FriendSince  int64  `json:"friend_since"`
			} `json:"friends"`
		} `json:"friendslist"`
	}](ctx, c, "/ISteamUser/GetFriendList/v0001/", query)
	if errResp != nil {
		return nil, errResp
	}

	var friends steamid.Collection
	for _, friend := range resp.FriendsList.Friends {
		sid := steamid.New(friend.SteamID)
		if !sid.Valid() {
			continue
		}

		friends = append(friends, sid)
	}

	return friends, nil
}

// TF2Playtime fetches the total recorded TF2 playtime for a single player.
// Players hiding their game details yield zero playtime, not an error.
func (c *Client) TF2Playtime(ctx context.Context, steamID steamid.SteamID) (time.Duration, error) {
	query := url.Values{}
	query.Set("steamid", steamID.String())
	query.Set("include_played_free_games", "1")
	query.Set("appids_filter[0]", fmt.Sprintf("%d", appIDTF2))

	resp, errResp := get[struct {
		Response struct {
			GameCount int `json:"game_count"`
			Games     []struct {
				AppID           int `json:"appid"`
				PlaytimeForever int `json:"playtime_forever"`
			} `json:"games"`
		} `json:"response"`
	}](ctx, c, "/IPlayerService/GetOwnedGames/v0001/", query)
	if errResp != nil {
		return 0, errResp
	}

	for _, game := range resp.Response.Games {
		if game.AppID == appIDTF2 {
			return time.Duration(game.PlaytimeForever) * time.Minute, nil
		}
	}

	return 0, nil
}

func get[T any](ctx context.Context, client *Client, path string, query url.Values) (T, error) {
	var value T

	query.Set("key", client.apiKey)

	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet,
		client.baseURL+path+"?"+query.Encode(), nil)
	if errReq != nil {
		return value, errors.Join(errReq, ErrRequest)
	}

	resp, errResp := client.httpClient.Do(req)
	if errResp != nil {
		return value, errors.Join(errResp, ErrRequest)
	}

	defer func(body io.Closer) {
		if err := body.Close(); err != nil {
			slog.Error("Failed to close response body", slog.String("error", err.Error()))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return value, &APIError{StatusCode: resp.StatusCode}
	}

	parsed, errParse := encoding.UnmarshalJSON[T](resp.Body)
	if errParse != nil {
		return value, errors.Join(errParse, ErrRequest)
	}

	return parsed, nil
}
