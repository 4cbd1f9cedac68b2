package world

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/leighmacdonald/tf-world/internal/steamapi"
	"github.com/leighmacdonald/tf-world/internal/tf"
	"github.com/leighmacdonald/tf-world/internal/tf/events"
	"github.com/stretchr/testify/require"
)

var (
	testLocalID = steamid.New("[U:1:1]")
	testOtherID = steamid.New("[U:1:2]")
	testThirdID = steamid.New("[U:1:3]")
)

func newTestWorld(tb testing.TB) *World {
	tb.Helper()

	return New(testLocalID, events.NewParser(), nil)
}

func statusLine(userID int, name string, sid steamid.SteamID, connected string) string {
	return fmt.Sprintf(`#     %d "%s"       %s     %s       64    0 active 169.254.0.1:27005`,
		userID, name, sid.Steam3(), connected)
}

type recordingListener struct {
	NopEventListener

	statusUpdates []steamid.SteamID
	chats         []string
	drops         []string
	spawns        []tf.PlayerClass
	initialized   []bool
}

func (r *recordingListener) OnPlayerStatusUpdate(_ *World, player *Player) {
	r.statusUpdates = append(r.statusUpdates, player.SteamID())
}

func (r *recordingListener) OnChatMsg(_ *World, player *Player, message string) {
	r.chats = append(r.chats, player.Name()+": "+message)
}

func (r *recordingListener) OnPlayerDroppedFromServer(_ *World, player *Player, reason string) {
	r.drops = append(r.drops, player.Name()+": "+reason)
}

func (r *recordingListener) OnLocalPlayerSpawned(_ *World, class tf.PlayerClass) {
	r.spawns = append(r.spawns, class)
}

func (r *recordingListener) OnLocalPlayerInitialized(_ *World, initialized bool) {
	r.initialized = append(r.initialized, initialized)
}

func TestLobbyHeaderSizesSlots(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)

	world.AddConsoleOutputLine("CTFLobbyShared: ID:000197a5e837f1dc  2 member(s), 1 pending")
	require.Equal(t, 3, world.ApproxLobbyMemberCount())

	world.AddConsoleOutputLine("  Member[0] [U:1:1]  team = TF_GC_TEAM_INVADERS  type = MATCH_PLAYER")
	world.AddConsoleOutputLine("  Member[1] [U:1:2]  team = TF_GC_TEAM_DEFENDERS  type = MATCH_PLAYER")
	world.AddConsoleOutputLine("  Pending[0] [U:1:3]  team = TF_GC_TEAM_INVADERS  type = MATCH_PLAYER")

	// Out of range slots are stale output and must be ignored.
	world.AddConsoleOutputLine("  Member[9] [U:1:99]  team = TF_GC_TEAM_INVADERS  type = MATCH_PLAYER")

	team, found := world.FindLobbyMemberTeam(testOtherID)
	require.True(t, found)
	require.Equal(t, tf.LobbyTeamDefenders, team)

	require.Equal(t, tf.RED, world.FindPlayer(testOtherID).Team())
	require.Equal(t, tf.BLU, world.FindPlayer(testLocalID).Team())
}

func TestLobbyMembersDedup(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)

	world.AddConsoleOutputLine("CTFLobbyShared: ID:000197a5e837f1dc  2 member(s), 2 pending")
	world.AddConsoleOutputLine("  Member[0] [U:1:1]  team = TF_GC_TEAM_INVADERS  type = MATCH_PLAYER")
	world.AddConsoleOutputLine("  Member[1] [U:1:2]  team = TF_GC_TEAM_DEFENDERS  type = MATCH_PLAYER")
	// The same player still listed as pending must not be yielded twice. The
	// second pending slot was never filled and stays invalid.
	world.AddConsoleOutputLine("  Pending[0] [U:1:2]  team = TF_GC_TEAM_DEFENDERS  type = MATCH_PLAYER")

	var yielded []steamid.SteamID
	for player := range world.LobbyMembers() {
		yielded = append(yielded, player.SteamID())
	}

	require.Equal(t, []steamid.SteamID{testLocalID, testOtherID}, yielded)
}

func TestLobbyCreatedClearsState(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)

	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "05:22"))
	require.NotNil(t, world.FindPlayer(testOtherID))

	world.AddConsoleOutputLine("Lobby created")
	require.Nil(t, world.FindPlayer(testOtherID))
	require.Equal(t, 0, world.ApproxLobbyMemberCount())
}

func TestLobbyUpdatedResetsClientIndexes(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)

	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "05:22"))
	world.AddConsoleOutputLine(`#    7 "alice"`)
	require.Equal(t, 7, world.FindPlayer(testOtherID).ClientIndex())

	world.AddConsoleOutputLine("Lobby updated")
	require.NotNil(t, world.FindPlayer(testOtherID))
	require.Equal(t, 0, world.FindPlayer(testOtherID).ClientIndex())
}

func TestLobbyStatusFailedClearsOnce(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)

	world.AddConsoleOutputLine("CTFLobbyShared: ID:000197a5e837f1dc  1 member(s), 0 pending")
	world.AddConsoleOutputLine("  Member[0] [U:1:2]  team = TF_GC_TEAM_DEFENDERS  type = MATCH_PLAYER")
	require.NotNil(t, world.FindPlayer(testOtherID))

	world.AddConsoleOutputLine("Failed to find lobby shared object")
	require.Nil(t, world.FindPlayer(testOtherID))
	require.Equal(t, 0, world.ApproxLobbyMemberCount())

	// Repeated failures with nothing to clear are a no-op.
	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "05:22"))
	world.AddConsoleOutputLine("Failed to find lobby shared object")
	require.NotNil(t, world.FindPlayer(testOtherID))
}

func TestStatusConnectionTimeDebounce(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)
	base := time.Date(2026, time.August, 16, 1, 13, 50, 0, time.UTC)

	world.now = func() time.Time { return base }
	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "00:30"))

	player := world.FindPlayer(testOtherID)
	require.NotNil(t, player)

	connectedAt := base.Add(-30 * time.Second)
	require.Equal(t, connectedAt, player.Status().ConnectionTime)

	// 10.4s later the server reports 40s connected, placing the connection
	// 400ms later than before. Below the jitter threshold, so keep the old
	// value.
	world.now = func() time.Time { return base.Add(10400 * time.Millisecond) }
	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "00:40"))
	require.Equal(t, connectedAt, player.Status().ConnectionTime)

	// A reconnect moves the connection time far beyond the threshold.
	world.now = func() time.Time { return base.Add(60 * time.Second) }
	world.AddConsoleOutputLine(statusLine(53, "alice", testOtherID, "00:05"))
	require.Equal(t, base.Add(55*time.Second), player.Status().ConnectionTime)

	require.Equal(t, world.LastStatusUpdate(), player.LastStatusUpdate())
}

func TestTeamShare(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)

	world.AddConsoleOutputLine("CTFLobbyShared: ID:000197a5e837f1dc  2 member(s), 0 pending")
	world.AddConsoleOutputLine("  Member[0] [U:1:1]  team = TF_GC_TEAM_INVADERS  type = MATCH_PLAYER")
	world.AddConsoleOutputLine("  Member[1] [U:1:2]  team = TF_GC_TEAM_DEFENDERS  type = MATCH_PLAYER")

	require.Equal(t, TeamShareOpposite, world.TeamShare(testLocalID, testOtherID))
	require.Equal(t, TeamShareOpposite, world.TeamShare(testOtherID, testLocalID))
	require.Equal(t, TeamShareSame, world.TeamShare(testOtherID, testOtherID))
	require.Equal(t, TeamShareNeither, world.TeamShare(testLocalID, testThirdID))
	require.Equal(t, TeamShareOpposite, world.LocalTeamShare(testOtherID))
}

func TestKillCounters(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)

	world.AddConsoleOutputLine(statusLine(50, "me", testLocalID, "01:00"))
	world.AddConsoleOutputLine(statusLine(51, "foe", testOtherID, "01:00"))

	world.AddConsoleOutputLine("foe killed me with scattergun.")
	world.AddConsoleOutputLine("me killed foe with shotgun. (crit)")
	world.AddConsoleOutputLine("foe killed stranger with scattergun.")

	foe := world.FindPlayer(testOtherID)
	require.Equal(t, Scores{Kills: 2, Deaths: 1, LocalKills: 1, LocalDeaths: 1}, foe.Scores())

	me := world.FindPlayer(testLocalID)
	require.Equal(t, Scores{Kills: 1, Deaths: 1}, me.Scores())
}

func TestChatRequiresKnownPlayer(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)
	listener := &recordingListener{}
	world.AddEventListener(listener)

	world.AddConsoleOutputLine("stranger :  anyone there?")
	require.Empty(t, listener.chats)

	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "05:22"))
	world.AddConsoleOutputLine("*DEAD*(TEAM) alice :  need a medic")
	require.Equal(t, []string{"alice: need a medic"}, listener.chats)
}

func TestDropResolvesPlayer(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)
	listener := &recordingListener{}
	world.AddEventListener(listener)

	world.AddConsoleOutputLine("Dropped stranger from server (Disconnect by user.)")
	require.Empty(t, listener.drops)

	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "05:22"))
	world.AddConsoleOutputLine("Dropped alice from server (Disconnect by user.)")
	require.Equal(t, []string{"alice: Disconnect by user."}, listener.drops)
}

func TestLocalPlayerLifecycle(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)
	listener := &recordingListener{}
	world.AddEventListener(listener)

	require.False(t, world.IsLocalPlayerInitialized())

	// Non-class configs don't count as a spawn.
	world.AddConsoleOutputLine("execing autoexec.cfg")
	require.False(t, world.IsLocalPlayerInitialized())

	world.AddConsoleOutputLine("execing heavyweapons.cfg")
	require.True(t, world.IsLocalPlayerInitialized())
	require.Equal(t, []tf.PlayerClass{tf.ClassHeavy}, listener.spawns)
	require.Equal(t, []bool{true}, listener.initialized)

	// Respawning as another class fires spawn but not initialization.
	world.AddConsoleOutputLine("execing spy.cfg")
	require.Equal(t, []tf.PlayerClass{tf.ClassHeavy, tf.ClassSpy}, listener.spawns)
	require.Equal(t, []bool{true}, listener.initialized)

	world.AddConsoleOutputLine("---- Host_NewGame ----")
	require.False(t, world.IsLocalPlayerInitialized())
	require.Equal(t, []bool{true, false}, listener.initialized)

	world.AddConsoleOutputLine("execing medic.cfg")
	world.AddConsoleOutputLine("Connecting to 169.254.0.1:27015...")
	require.False(t, world.IsLocalPlayerInitialized())

	world.AddConsoleOutputLine("execing medic.cfg")
	world.AddConsoleOutputLine("Client reached server_spawn.")
	require.False(t, world.IsLocalPlayerInitialized())
}

func TestVoteTracking(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)

	require.False(t, world.IsVoteInProgress())

	world.AddConsoleOutputLine("Msg from 169.254.0.1:27015: svc_UserMessage: type 46, bytes 120")
	require.True(t, world.IsVoteInProgress())

	world.AddConsoleOutputLine("Msg from 169.254.0.1:27015: svc_UserMessage: type 47, bytes 8")
	require.False(t, world.IsVoteInProgress())

	world.AddConsoleOutputLine("Msg from 169.254.0.1:27015: svc_UserMessage: type 48, bytes 8")
	require.False(t, world.IsVoteInProgress())

	// An interrupted vote is abandoned on any game transition.
	world.AddConsoleOutputLine("Msg from 169.254.0.1:27015: svc_UserMessage: type 46, bytes 120")
	world.AddConsoleOutputLine("Connecting to 169.254.0.1:27015...")
	require.False(t, world.IsVoteInProgress())
}

func TestFindSteamIDForNameMostRecentWins(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)
	base := time.Date(2026, time.August, 16, 1, 0, 0, 0, time.UTC)

	world.now = func() time.Time { return base }
	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "05:22"))

	world.now = func() time.Time { return base.Add(time.Minute) }
	world.AddConsoleOutputLine(statusLine(53, "alice", testThirdID, "00:10"))

	sid, found := world.FindSteamIDForName("alice")
	require.True(t, found)
	require.True(t, sid.Equal(testThirdID))

	_, found = world.FindSteamIDForName("bob")
	require.False(t, found)
}

func TestRecentPlayers(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)
	base := time.Date(2026, time.August, 16, 1, 0, 0, 0, time.UTC)

	for idx, sid := range []steamid.SteamID{testLocalID, testOtherID, testThirdID} {
		world.now = func() time.Time { return base.Add(time.Duration(idx) * time.Minute) }
		world.AddConsoleOutputLine(statusLine(50+idx, fmt.Sprintf("player-%d", idx), sid, "00:10"))
	}

	recent := world.RecentPlayers(2)
	require.Len(t, recent, 2)
	sid0, sid1 := recent[0].SteamID(), recent[1].SteamID()
	require.True(t, sid0.Equal(testThirdID))
	require.True(t, sid1.Equal(testOtherID))

	require.Len(t, world.RecentPlayers(10), 3)
}

func TestPingUpdate(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)

	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "05:22"))
	world.AddConsoleOutputLine("  101 ms : alice")

	require.Equal(t, 101, world.FindPlayer(testOtherID).Status().Ping)
}

func TestConsoleOutputChunks(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)

	world.AddConsoleOutputChunk(statusLine(52, "alice", testOtherID, "05:22") + "\r\n" +
		statusLine(53, "bob", testThirdID, "01:02") + "\npartial without newline")

	require.NotNil(t, world.FindPlayer(testOtherID))
	require.NotNil(t, world.FindPlayer(testThirdID))
}

func TestUpdateQueueBatchesAndRetries(t *testing.T) {
	t.Parallel()

	var (
		batches [][]steamid.SteamID
		fail    = true
		applied []steamid.SteamID
	)

	queue := newUpdateQueue("test",
		func(_ context.Context, _ *steamapi.Client, steamIDs steamid.Collection) ([]steamid.SteamID, error) {
			batches = append(batches, steamIDs)
			if fail {
				return nil, errors.New("boom")
			}

			return steamIDs, nil
		},
		func(sid steamid.SteamID) steamid.SteamID {
			applied = append(applied, sid)

			return sid
		})

	for idx := range 150 {
		queue.queue(steamid.New(fmt.Sprintf("[U:1:%d]", idx+1)))
	}

	// Duplicates and invalid ids never enter the queue.
	queue.queue(steamid.New("[U:1:1]"))
	queue.queue(steamid.SteamID{})
	require.Len(t, queue.pending, 150)

	var (
		ctx    = context.Background()
		client = steamapi.New(http.DefaultClient, "test-key", "")
	)

	drain := func() {
		require.Eventually(t, func() bool {
			queue.poll()

			return queue.inFlight == nil
		}, 5*time.Second, time.Millisecond)
	}

	queue.update(ctx, client)
	drain()

	// The failed batch stays pending for a retry.
	require.Len(t, batches, 1)
	require.Len(t, batches[0], steamapi.MaxBatchSize)
	require.Len(t, queue.pending, 150)
	require.Empty(t, applied)

	fail = false

	queue.update(ctx, client)
	drain()
	require.Len(t, queue.pending, 50)

	queue.update(ctx, client)
	drain()
	require.Empty(t, queue.pending)

	require.Len(t, batches, 3)
	require.Len(t, applied, 150)
}

func TestUpdateQueueRequiresClient(t *testing.T) {
	t.Parallel()

	queue := newUpdateQueue("test",
		func(_ context.Context, _ *steamapi.Client, steamIDs steamid.Collection) ([]steamid.SteamID, error) {
			return steamIDs, nil
		},
		func(sid steamid.SteamID) steamid.SteamID { return sid })

	queue.queue(testOtherID)
	queue.update(context.Background(), nil)
	require.Nil(t, queue.inFlight)
	require.Len(t, queue.pending, 1)
}

func TestUpdateQueuePartialResponseRetries(t *testing.T) {
	t.Parallel()

	var requested []steamid.Collection

	// The API omits every id but the first, as it does for private profiles
	// or transient gaps.
	queue := newUpdateQueue("test",
		func(_ context.Context, _ *steamapi.Client, steamIDs steamid.Collection) ([]steamid.SteamID, error) {
			requested = append(requested, steamIDs)

			return steamIDs[:1], nil
		},
		func(sid steamid.SteamID) steamid.SteamID { return sid })

	queue.queue(testOtherID)
	queue.queue(testThirdID)

	var (
		ctx    = context.Background()
		client = steamapi.New(http.DefaultClient, "test-key", "")
	)

	drain := func() {
		require.Eventually(t, func() bool {
			queue.poll()

			return queue.inFlight == nil
		}, 5*time.Second, time.Millisecond)
	}

	queue.update(ctx, client)
	drain()

	// The id the response did not cover stays queued and is asked for again.
	require.Equal(t, steamid.Collection{testThirdID}, queue.pending)

	queue.update(ctx, client)
	drain()

	require.Empty(t, queue.pending)
	require.Len(t, requested, 2)
	require.Equal(t, steamid.Collection{testThirdID}, requested[1])
}

func TestClientSwapWithBatchInFlight(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		_, _ = writer.Write([]byte(`{"response":{"players":[{"steamid":"76561197960265730","personaname":"alice"}]}}`))
	}))
	defer server.Close()

	world := newTestWorld(t)
	world.SetClient(steamapi.New(http.DefaultClient, "test-key", server.URL))
	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "05:22"))

	player := world.FindPlayer(testOtherID)

	_, found := player.Summary()
	require.False(t, found)

	ctx := context.Background()

	// Launch the batch, then drop the client before it completes. The request
	// must finish with the client it was handed.
	world.summaryUpdates.update(ctx, world.client)
	world.SetClient(nil)

	require.Eventually(t, func() bool {
		world.Update(ctx)
		_, found := player.Summary()

		return found
	}, 5*time.Second, time.Millisecond)

	summary, _ := player.Summary()
	require.Equal(t, "alice", summary.PersonaName)
}

func TestSummaryQueuesOnMiss(t *testing.T) {
	t.Parallel()

	world := newTestWorld(t)
	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "05:22"))

	player := world.FindPlayer(testOtherID)

	_, found := player.Summary()
	require.False(t, found)
	require.Equal(t, steamid.Collection{testOtherID}, world.summaryUpdates.pending)

	_, found = player.Bans()
	require.False(t, found)
	require.Equal(t, steamid.Collection{testOtherID}, world.bansUpdates.pending)
}

func TestFriendsRefresh(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		_, _ = writer.Write([]byte(`{"friendslist":{"friends":[{"steamid":"76561197960265730","relationship":"friend","friend_since":0}]}}`))
	}))
	defer server.Close()

	world := newTestWorld(t)
	world.SetClient(steamapi.New(http.DefaultClient, "test-key", server.URL))

	ctx := context.Background()

	require.Eventually(t, func() bool {
		world.Update(ctx)

		return world.IsFriend(testOtherID)
	}, 5*time.Second, time.Millisecond)

	require.False(t, world.IsFriend(testThirdID))
}

func TestFriendsPrivateList(t *testing.T) {
	t.Parallel()

	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		calls++
		writer.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	world := newTestWorld(t)
	world.SetClient(steamapi.New(http.DefaultClient, "test-key", server.URL))

	ctx := context.Background()

	world.Update(ctx)
	require.Eventually(t, func() bool {
		world.Update(ctx)

		return world.friendsInFlight == nil
	}, 5*time.Second, time.Millisecond)

	require.False(t, world.IsFriend(testOtherID))
	// The limiter holds further attempts until the refresh interval elapses.
	world.Update(ctx)
	require.Nil(t, world.friendsInFlight)
	require.Equal(t, 1, calls)
}

func TestPlaytimeFetchedOnce(t *testing.T) {
	t.Parallel()

	var calls int

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		calls++
		writer.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	world := newTestWorld(t)
	world.SetClient(steamapi.New(http.DefaultClient, "test-key", server.URL))
	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "05:22"))

	player := world.FindPlayer(testOtherID)

	_, found := player.Playtime()
	require.False(t, found)

	require.Eventually(t, func() bool {
		_, _ = player.Playtime()

		return player.playtimeInFlight == nil
	}, 5*time.Second, time.Millisecond)

	// A failed fetch is not retried.
	_, found = player.Playtime()
	require.False(t, found)
	require.True(t, player.playtimeFetched)
	require.Equal(t, 1, calls)
}

func TestPlayerUserData(t *testing.T) {
	t.Parallel()

	type regionKey struct{}

	world := newTestWorld(t)
	world.AddConsoleOutputLine(statusLine(52, "alice", testOtherID, "05:22"))

	player := world.FindPlayer(testOtherID)

	_, found := Data[string](player, regionKey{})
	require.False(t, found)

	SetData(player, regionKey{}, "eu-west")

	region, found := Data[string](player, regionKey{})
	require.True(t, found)
	require.Equal(t, "eu-west", region)

	// Wrong type assertions fail closed.
	_, found = Data[int](player, regionKey{})
	require.False(t, found)
}
