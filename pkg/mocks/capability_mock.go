package mocks

import (
	"context"

	"github.com/dukex/signoff/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockCapabilityChecker is a mock implementation of document.CapabilityChecker interface.
type MockCapabilityChecker struct {
	mock.Mock
}

func (m *MockCapabilityChecker) HasWriteCapability(ctx context.Context, actor string, doc *models.Document) bool {
	args := m.Called(ctx, actor, doc)

	return args.Bool(0)
}

func (m *MockCapabilityChecker) IsOwner(ctx context.Context, actor string, doc *models.Document) bool {
	args := m.Called(ctx, actor, doc)

	return args.Bool(0)
}

func (m *MockCapabilityChecker) IsAdministrator(ctx context.Context, actor string) bool {
	args := m.Called(ctx, actor)

	return args.Bool(0)
}
