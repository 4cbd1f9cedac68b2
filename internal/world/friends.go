package world

import (
	"context"
	"log/slog"

	"github.com/leighmacdonald/steamid/v4/steamid"
	"github.com/leighmacdonald/tf-world/internal/steamapi"
)

type friendsResult struct {
	friends map[steamid.SteamID]struct{}
	err     error
}

// IsFriend reports whether a steam id appears in the most recent friends
// snapshot. Always false until the first successful refresh.
func (w *World) IsFriend(sid steamid.SteamID) bool {
	_, found := w.friends[sid]

	return found
}

// updateFriends refreshes the local player's friends list, rate limited to
// one request per interval. Friends lists are commonly private; a 401 is
// expected and only logged at debug.
func (w *World) updateFriends(ctx context.Context) {
	if w.friendsInFlight != nil {
		select {
		case result := <-w.friendsInFlight:
			w.friendsInFlight = nil

			switch {
			case result.err != nil && steamapi.IsUnauthorized(result.err):
				slog.Debug("Friends list is private", slog.String("error", result.err.Error()))
			case result.err != nil:
				slog.Error("Failed to fetch friends list", slog.String("error", result.err.Error()))
			default:
				w.friends = result.friends
			}
		default:
		}

		return
	}

	if w.client == nil || !w.localID.Valid() || !w.friendsLimiter.Allow() {
		return
	}

	var (
		client = w.client
		sid    = w.localID
		result = make(chan friendsResult, 1)
	)

	go func() {
		friends, errFriends := client.FriendList(ctx, sid)
		if errFriends != nil {
			result <- friendsResult{err: errFriends}

			return
		}

		snapshot := make(map[steamid.SteamID]struct{}, len(friends))
		for _, friend := range friends {
			snapshot[friend] = struct{}{}
		}

		result <- friendsResult{friends: snapshot}
	}()

	w.friendsInFlight = result
}
