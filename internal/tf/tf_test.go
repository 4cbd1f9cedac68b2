package tf_test

import (
	"testing"

	"github.com/leighmacdonald/tf-world/internal/tf"
	"github.com/stretchr/testify/require"
)

func TestLobbyTeam(t *testing.T) {
	t.Parallel()

	require.Equal(t, tf.LobbyTeamDefenders, tf.LobbyTeamInvaders.Opposite())
	require.Equal(t, tf.LobbyTeamInvaders, tf.LobbyTeamDefenders.Opposite())
	require.Equal(t, tf.RED, tf.LobbyTeamDefenders.Color())
	require.Equal(t, tf.BLU, tf.LobbyTeamInvaders.Color())
}

func TestClassFromConfig(t *testing.T) {
	t.Parallel()

	class, found := tf.ClassFromConfig("heavyweapons.cfg")
	require.True(t, found)
	require.Equal(t, tf.ClassHeavy, class)

	class, found = tf.ClassFromConfig("Scout.cfg")
	require.True(t, found)
	require.Equal(t, tf.ClassScout, class)

	_, found = tf.ClassFromConfig("autoexec.cfg")
	require.False(t, found)

	_, found = tf.ClassFromConfig("heavy.cfg")
	require.False(t, found)
}
