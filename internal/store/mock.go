package store

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockWorkspaceStore struct {
	mock.Mock
}

func (m *MockWorkspaceStore) Ping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockWorkspaceStore) ListWorkspacesForUser(ctx context.Context, userId int) ([]string, error) {
	args := m.Called(ctx, userId)
	if rooms, ok := args.Get(0).([]string); ok {
		return rooms, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockWorkspaceStore) IsMember(ctx context.Context, userId int, roomId string) (bool, error) {
	args := m.Called(ctx, userId, roomId)
	return args.Bool(0), args.Error(1)
}
