package store

import (
	"context"
	"database/sql"

	"github.com/taskstream/taskstream/internal/types"
)

type PgWorkspaceStore struct {
	conn *sql.DB
}

func NewPgWorkspaceStore(dsn string) (*PgWorkspaceStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PgWorkspaceStore{conn: db}, nil
}

func (db *PgWorkspaceStore) Ping() error {
	return db.conn.Ping()
}

func (db *PgWorkspaceStore) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

func (db *PgWorkspaceStore) ListWorkspacesForUser(ctx context.Context, userId int) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT project_id FROM project_members WHERE user_id = $1",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roomIds []string
	for rows.Next() {
		var projectId int
		if err := rows.Scan(&projectId); err != nil {
			return nil, err
		}
		roomIds = append(roomIds, types.ProjectRoom(projectId))
	}

	return roomIds, rows.Err()
}

func (db *PgWorkspaceStore) IsMember(ctx context.Context, userId int, roomId string) (bool, error) {
	projectId, ok := types.ParseProjectRoom(roomId)
	if !ok {
		return false, nil
	}

	var exists bool
	err := db.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM project_members WHERE user_id = $1 AND project_id = $2)",
		userId,
		projectId,
	).Scan(&exists)

	return exists, err
}
