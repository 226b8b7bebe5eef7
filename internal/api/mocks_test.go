package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/imamik/oscp/internal/provisioning/app"
	"github.com/imamik/oscp/internal/request"
	"github.com/imamik/oscp/internal/resource"
)

type mockConnectivity struct {
	mock.Mock
}

func (m *mockConnectivity) HandleAll(ctx context.Context, reqs []request.ConnectivityRequest) []request.Result {
	args := m.Called(ctx, reqs)
	return args.Get(0).([]request.Result)
}

type mockInstances struct {
	mock.Mock
}

func (m *mockInstances) Deploy(ctx context.Context, req request.DeployRequest) (*app.Deployment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.Deployment), args.Error(1)
}

func (m *mockInstances) Delete(ctx context.Context, req request.DeleteRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockInstances) Power(ctx context.Context, req request.PowerRequest) (*resource.Instance, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resource.Instance), args.Error(1)
}

func (m *mockInstances) RefreshIP(ctx context.Context, instanceID string) (*app.Addresses, error) {
	args := m.Called(ctx, instanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.Addresses), args.Error(1)
}

type mockImages struct {
	mock.Mock
}

func (m *mockImages) Save(ctx context.Context, req request.SaveRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockImages) Restore(ctx context.Context, req request.RestoreRequest) (*app.Deployment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.Deployment), args.Error(1)
}

func (m *mockImages) DeleteSaved(ctx context.Context, req request.DeleteSavedRequest) error {
	return m.Called(ctx, req).Error(0)
}
