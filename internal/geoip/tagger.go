package geoip

import (
	"log/slog"

	"github.com/leighmacdonald/tf-world/internal/world"
)

type recordKey struct{}

// PlayerRecord returns the geo record previously attached to a player.
func PlayerRecord(player *world.Player) (Record, bool) {
	return world.Data[Record](player, recordKey{})
}

// Tagger attaches a geo record to every player whose status row carries an
// address. Register it as a world event listener.
type Tagger struct {
	world.NopEventListener

	db *DB
}

func NewTagger(db *DB) *Tagger {
	return &Tagger{db: db}
}

func (t *Tagger) OnPlayerStatusUpdate(_ *world.World, player *world.Player) {
	address := player.Status().Address
	if address == "" {
		return
	}

	if _, found := PlayerRecord(player); found {
		return
	}

	record, errLookup := t.db.Lookup(address)
	if errLookup != nil {
		slog.Debug("Failed to resolve player address",
			slog.String("address", address), slog.String("error", errLookup.Error()))

		return
	}

	world.SetData(player, recordKey{}, record)
}
