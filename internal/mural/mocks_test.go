package mural

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mural-service/internal/playlog"
	"mural-service/internal/realtime"
)

type MockPlays struct {
	mock.Mock
}

func (m *MockPlays) Record(ctx context.Context, p playlog.Play) (playlog.Play, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(playlog.Play), args.Error(1)
}

func (m *MockPlays) Recent(ctx context.Context, limit int) ([]playlog.Play, error) {
	args := m.Called(ctx, limit)
	if v := args.Get(0); v != nil {
		return v.([]playlog.Play), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPlays) Last(ctx context.Context, src string) (playlog.Play, error) {
	args := m.Called(ctx, src)
	return args.Get(0).(playlog.Play), args.Error(1)
}

type MockBus struct {
	mock.Mock
}

func (m *MockBus) Publish(ctx context.Context, ev realtime.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func reason(r string) interface{} {
	return mock.MatchedBy(func(ev realtime.Event) bool {
		return ev.Type == realtime.TypeManifestChanged && ev.Reason == r
	})
}
