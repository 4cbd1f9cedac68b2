package store

import (
	"context"
	"database/sql"
	"errors"
)

var ErrQuery = errors.New("failed to execute query")

// Queries wraps all hand written statements against the schema.
type Queries struct {
	db *sql.DB
}

func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

type InsertPlayerParams struct {
	SteamID   int64
	Name      string
	CreatedOn int64
	UpdatedOn int64
}

// InsertPlayer upserts a player row, refreshing the name when one is known.
func (q *Queries) InsertPlayer(ctx context.Context, params InsertPlayerParams) error {
	const query = `
		INSERT INTO players (steam_id, name, created_on, updated_on)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (steam_id) DO UPDATE
		SET name = CASE WHEN excluded.name != '' THEN excluded.name ELSE name END,
		    updated_on = excluded.updated_on`

	if _, err := q.db.ExecContext(ctx, query,
		params.SteamID, params.Name, params.CreatedOn, params.UpdatedOn); err != nil {
		return errors.Join(err, ErrQuery)
	}

	return nil
}

type InsertChatParams struct {
	SteamID   int64
	Name      string
	Message   string
	TeamOnly  int64
	Dead      int64
	CreatedOn int64
}

func (q *Queries) InsertChat(ctx context.Context, params InsertChatParams) error {
	const query = `
		INSERT INTO chat (steam_id, name, message, team_only, dead, created_on)
		VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := q.db.ExecContext(ctx, query,
		params.SteamID, params.Name, params.Message, params.TeamOnly, params.Dead, params.CreatedOn); err != nil {
		return errors.Join(err, ErrQuery)
	}

	return nil
}

type InsertKillParams struct {
	SourceID  int64
	VictimID  int64
	Weapon    string
	Crit      int64
	CreatedOn int64
}

func (q *Queries) InsertKill(ctx context.Context, params InsertKillParams) error {
	const query = `
		INSERT INTO kills (source_id, victim_id, weapon, crit, created_on)
		VALUES (?, ?, ?, ?, ?)`

	if _, err := q.db.ExecContext(ctx, query,
		params.SourceID, params.VictimID, params.Weapon, params.Crit, params.CreatedOn); err != nil {
		return errors.Join(err, ErrQuery)
	}

	return nil
}

type ChatRow struct {
	ChatID    int64
	SteamID   int64
	Name      string
	Message   string
	TeamOnly  int64
	Dead      int64
	CreatedOn int64
}

// ChatHistory returns the most recent messages for one player, newest first.
func (q *Queries) ChatHistory(ctx context.Context, steamID int64, limit int64) ([]ChatRow, error) {
	const query = `
		SELECT chat_id, steam_id, name, message, team_only, dead, created_on
		FROM chat
		WHERE steam_id = ?
		ORDER BY created_on DESC, chat_id DESC
		LIMIT ?`

	rows, errRows := q.db.QueryContext(ctx, query, steamID, limit)
	if errRows != nil {
		return nil, errors.Join(errRows, ErrQuery)
	}

	defer rows.Close()

	var messages []ChatRow

	for rows.Next() {
		var row ChatRow
		if err := rows.Scan(&row.ChatID, &row.SteamID, &row.Name,
			&row.Message, &row.TeamOnly, &row.Dead, &row.CreatedOn); err != nil {
			return nil, errors.Join(err, ErrQuery)
		}

		messages = append(messages, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Join(err, ErrQuery)
	}

	return messages, nil
}

type KillRow struct {
	KillID    int64
	SourceID  int64
	VictimID  int64
	Weapon    string
	Crit      int64
	CreatedOn int64
}

// KillHistory returns the most recent kills involving one player, as either
// attacker or victim, newest first.
func (q *Queries) KillHistory(ctx context.Context, steamID int64, limit int64) ([]KillRow, error) {
	const query = `
		SELECT kill_id, source_id, victim_id, weapon, crit, created_on
		FROM kills
		WHERE source_id = ? OR victim_id = ?
		ORDER BY created_on DESC, kill_id DESC
		LIMIT ?`

	rows, errRows := q.db.QueryContext(ctx, query, steamID, steamID, limit)
	if errRows != nil {
		return nil, errors.Join(errRows, ErrQuery)
	}

	defer rows.Close()

	var kills []KillRow

	for rows.Next() {
		var row KillRow
		if err := rows.Scan(&row.KillID, &row.SourceID, &row.VictimID,
			&row.Weapon, &row.Crit, &row.CreatedOn); err != nil {
			return nil, errors.Join(err, ErrQuery)
		}

		kills = append(kills, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Join(err, ErrQuery)
	}

	return kills, nil
}
