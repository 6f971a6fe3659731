package types

import (
	"fmt"
	"strconv"
	"strings"
)

type User struct {
	Id       int    `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
}

const (
	projectRoomPrefix = "project_"
	userRoomPrefix    = "user_"
)

// ProjectRoom returns the broadcast room id for a workspace.
func ProjectRoom(projectId int) string {
	return fmt.Sprintf("%s%d", projectRoomPrefix, projectId)
}

// UserRoom returns the private room id for a user. Private rooms are
// derived from the user identity and never explicitly created.
func UserRoom(userId int) string {
	return fmt.Sprintf("%s%d", userRoomPrefix, userId)
}

// ParseProjectRoom extracts the project id from a workspace room id.
func ParseProjectRoom(roomId string) (int, bool) {
	raw, ok := strings.CutPrefix(roomId, projectRoomPrefix)
	if !ok {
		return 0, false
	}

	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// IsUserRoom reports whether the room id names a private user room.
func IsUserRoom(roomId string) bool {
	return strings.HasPrefix(roomId, userRoomPrefix)
}
