package steamapi_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/leighmacdonald/tf-world/internal/steamapi"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, path string, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, req *http.Request) {
		require.Equal(t, path, req.URL.Path)
		require.Equal(t, "test-key", req.URL.Query().Get("key"))
		writer.WriteHeader(status)
		_, _ = writer.Write([]byte(body))
	}))

	t.Cleanup(server.Close)

	return server
}

func TestPlayerSummaries(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, "/ISteamUser/GetPlayerSummaries/v0002/", http.StatusOK,
		`{"response":{"players":[{"steamid":"76561197960265730","personaname":"alice","loccountrycode":"US"}]}}`)

	client := steamapi.New(http.DefaultClient, "test-key", server.URL)

	summaries, err := client.PlayerSummaries(t.Context(), steamid.Collection{steamid.New("[U:1:2]")})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "alice", summaries[0].PersonaName)
	sid := summaries[0].SID()
	require.True(t, sid.Equal(steamid.New("[U:1:2]")))
}

func TestPlayerSummariesBatchLimit(t *testing.T) {
	t.Parallel()

	client := steamapi.New(http.DefaultClient, "test-key", "http://localhost")

	var steamIDs steamid.Collection
	for idx := range steamapi.MaxBatchSize + 1 {
		steamIDs = append(steamIDs, steamid.New(fmt.Sprintf("[U:1:%d]", idx+1)))
	}

	_, err := client.PlayerSummaries(t.Context(), steamIDs)
	require.ErrorIs(t, err, steamapi.ErrTooManyIDs)

	_, err = client.PlayerBanStates(t.Context(), steamIDs)
	require.ErrorIs(t, err, steamapi.ErrTooManyIDs)

	// Empty batches don't hit the network at all.
	summaries, errEmpty := client.PlayerSummaries(t.Context(), nil)
	require.NoError(t, errEmpty)
	require.Empty(t, summaries)
}

func TestPlayerBanStates(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, "/ISteamUser/GetPlayerBans/v1/", http.StatusOK,
		`{"players":[{"SteamId":"76561197960265730","VACBanned":true,"NumberOfVACBans":2,"EconomyBan":"none"}]}`)

	client := steamapi.New(http.DefaultClient, "test-key", server.URL)

	bans, err := client.PlayerBanStates(t.Context(), steamid.Collection{steamid.New("[U:1:2]")})
	require.NoError(t, err)
	require.Len(t, bans, 1)
	require.True(t, bans[0].VACBanned)
	require.True(t, bans[0].Banned())
}

func TestFriendListUnauthorized(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, "/ISteamUser/GetFriendList/v0001/", http.StatusUnauthorized, "")

	client := steamapi.New(http.DefaultClient, "test-key", server.URL)

	_, err := client.FriendList(t.Context(), steamid.New("[U:1:2]"))
	require.Error(t, err)
	require.True(t, steamapi.IsUnauthorized(err))
}

func TestTF2Playtime(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, "/IPlayerService/GetOwnedGames/v0001/", http.StatusOK,
		`{"response":{"game_count":2,"games":[{"appid":70,"playtime_forever":10},{"appid":440,"playtime_forever":90}]}}`)

	client := steamapi.New(http.DefaultClient, "test-key", server.URL)

	playtime, err := client.TF2Playtime(t.Context(), steamid.New("[U:1:2]"))
	require.NoError(t, err)
	require.Equal(t, 90*time.Minute, playtime)
}

func TestTF2PlaytimeHidden(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, "/IPlayerService/GetOwnedGames/v0001/", http.StatusOK,
		`{"response":{}}`)

	client := steamapi.New(http.DefaultClient, "test-key", server.URL)

	playtime, err := client.TF2Playtime(t.Context(), steamid.New("[U:1:2]"))
	require.NoError(t, err)
	require.Zero(t, playtime)
}
