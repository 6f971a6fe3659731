// Package store adapts the external relational data store. The realtime
// subsystem only ever reads from it: workspace memberships drive room
// authorization and presence fan-out.
package store

import "context"

type WorkspaceStore interface {
	Ping() error
	// ListWorkspacesForUser returns the room ids of every workspace the
	// user belongs to.
	ListWorkspacesForUser(ctx context.Context, userId int) ([]string, error)
	// IsMember reports whether the user belongs to the workspace backing
	// the given room.
	IsMember(ctx context.Context, userId int, roomId string) (bool, error)
}
