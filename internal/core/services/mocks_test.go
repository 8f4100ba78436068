package services

import (
	"context"
	"time"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"

	"github.com/stretchr/testify/mock"
)

// Mock repositories and gateways shared by the service tests.

type MockInstanceRepository struct {
	mock.Mock
}

func (m *MockInstanceRepository) Create(ctx context.Context, instance *domain.ChannelInstance) error {
	args := m.Called(ctx, instance)
	return args.Error(0)
}

func (m *MockInstanceRepository) GetByChannel(ctx context.Context, id domain.ChannelID) (*domain.ChannelInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChannelInstance), args.Error(1)
}

func (m *MockInstanceRepository) Update(ctx context.Context, instance *domain.ChannelInstance) error {
	args := m.Called(ctx, instance)
	return args.Error(0)
}

func (m *MockInstanceRepository) Delete(ctx context.Context, id domain.ChannelID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockInstanceRepository) ListByCommunity(ctx context.Context, communityID domain.CommunityID) ([]*domain.ChannelInstance, error) {
	args := m.Called(ctx, communityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChannelInstance), args.Error(1)
}

func (m *MockInstanceRepository) CountByOwner(ctx context.Context, communityID domain.CommunityID, ownerID domain.MemberID) (int, error) {
	args := m.Called(ctx, communityID, ownerID)
	return args.Int(0), args.Error(1)
}

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) Get(ctx context.Context, communityID domain.CommunityID, userID domain.MemberID) (*domain.UserDefaultProfile, error) {
	args := m.Called(ctx, communityID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserDefaultProfile), args.Error(1)
}

func (m *MockProfileRepository) Upsert(ctx context.Context, profile *domain.UserDefaultProfile) error {
	args := m.Called(ctx, profile)
	return args.Error(0)
}

type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) Get(ctx context.Context, communityID domain.CommunityID) (*domain.CommunityPolicy, error) {
	args := m.Called(ctx, communityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CommunityPolicy), args.Error(1)
}

func (m *MockPolicyRepository) ListEnabled(ctx context.Context) ([]*domain.CommunityPolicy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CommunityPolicy), args.Error(1)
}

func (m *MockPolicyRepository) Put(ctx context.Context, policy *domain.CommunityPolicy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

type MockChannelGateway struct {
	mock.Mock
}

func (m *MockChannelGateway) CreateChannel(ctx context.Context, communityID domain.CommunityID, categoryID, name string, settings domain.ChannelSettings) (domain.ChannelID, error) {
	args := m.Called(ctx, communityID, categoryID, name, settings)
	return args.Get(0).(domain.ChannelID), args.Error(1)
}

func (m *MockChannelGateway) DeleteChannel(ctx context.Context, id domain.ChannelID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockChannelGateway) ChannelExists(ctx context.Context, id domain.ChannelID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockChannelGateway) SetChannelProperties(ctx context.Context, id domain.ChannelID, props ports.ChannelProperties) error {
	args := m.Called(ctx, id, props)
	return args.Error(0)
}

func (m *MockChannelGateway) SetOverride(ctx context.Context, id domain.ChannelID, subject domain.MemberID, override ports.PermissionOverride) error {
	args := m.Called(ctx, id, subject, override)
	return args.Error(0)
}

func (m *MockChannelGateway) ClearOverride(ctx context.Context, id domain.ChannelID, subject domain.MemberID) error {
	args := m.Called(ctx, id, subject)
	return args.Error(0)
}

func (m *MockChannelGateway) ClearAllOverrides(ctx context.Context, id domain.ChannelID, keep []domain.MemberID) error {
	args := m.Called(ctx, id, keep)
	return args.Error(0)
}

func (m *MockChannelGateway) ForceDisconnect(ctx context.Context, id domain.ChannelID, member domain.MemberID) error {
	args := m.Called(ctx, id, member)
	return args.Error(0)
}

func (m *MockChannelGateway) Roster(ctx context.Context, id domain.ChannelID) ([]domain.RosterEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RosterEntry), args.Error(1)
}

func (m *MockChannelGateway) ResolveMember(ctx context.Context, communityID domain.CommunityID, id domain.MemberID) (*domain.Member, error) {
	args := m.Called(ctx, communityID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

type MockSurfaceHost struct {
	mock.Mock
}

func (m *MockSurfaceHost) Publish(ctx context.Context, host domain.ChannelID, view *domain.SurfaceView) (domain.SurfaceID, error) {
	args := m.Called(ctx, host, view)
	return args.Get(0).(domain.SurfaceID), args.Error(1)
}

func (m *MockSurfaceHost) Update(ctx context.Context, ref domain.SurfaceRef, view *domain.SurfaceView) error {
	args := m.Called(ctx, ref, view)
	return args.Error(0)
}

func (m *MockSurfaceHost) Remove(ctx context.Context, ref domain.SurfaceRef) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

type MockCooldownService struct {
	mock.Mock
}

func (m *MockCooldownService) TryAcquire(ctx context.Context, key string, window time.Duration) (bool, time.Duration, error) {
	args := m.Called(ctx, key, window)
	return args.Bool(0), args.Get(1).(time.Duration), args.Error(2)
}

func (m *MockCooldownService) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockMetricsRecorder struct {
	mock.Mock
}

func (m *MockMetricsRecorder) RecordCreation(communityID domain.CommunityID) {
	m.Called(communityID)
}

func (m *MockMetricsRecorder) RecordDeletion(reason string) {
	m.Called(reason)
}

func (m *MockMetricsRecorder) RecordTransfer(automatic bool) {
	m.Called(automatic)
}

func (m *MockMetricsRecorder) SetLiveInstances(communityID domain.CommunityID, n int) {
	m.Called(communityID, n)
}

func (m *MockMetricsRecorder) ObserveSweep(d time.Duration, reaped int) {
	m.Called(d, reaped)
}

type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) CreateChannel(ctx context.Context, communityID domain.CommunityID, requesterID domain.MemberID) (*domain.ChannelInstance, error) {
	args := m.Called(ctx, communityID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChannelInstance), args.Error(1)
}

func (m *MockOrchestrator) OnMemberJoined(ctx context.Context, channelID domain.ChannelID, memberID domain.MemberID) error {
	args := m.Called(ctx, channelID, memberID)
	return args.Error(0)
}

func (m *MockOrchestrator) OnMemberLeft(ctx context.Context, channelID domain.ChannelID, memberID domain.MemberID) error {
	args := m.Called(ctx, channelID, memberID)
	return args.Error(0)
}

func (m *MockOrchestrator) Dispatch(ctx context.Context, intent domain.Intent) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *MockOrchestrator) GetInstance(ctx context.Context, channelID domain.ChannelID) (*domain.ChannelInstance, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChannelInstance), args.Error(1)
}

func (m *MockOrchestrator) ListInstances(ctx context.Context, communityID domain.CommunityID) ([]*domain.ChannelInstance, error) {
	args := m.Called(ctx, communityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChannelInstance), args.Error(1)
}

func (m *MockOrchestrator) Delete(ctx context.Context, channelID domain.ChannelID) error {
	args := m.Called(ctx, channelID)
	return args.Error(0)
}

func (m *MockOrchestrator) FinalizeExpired(ctx context.Context, channelID domain.ChannelID) error {
	args := m.Called(ctx, channelID)
	return args.Error(0)
}
