package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	integrationapp "github.com/titledesk/backend/internal/application/integration"
	"github.com/titledesk/backend/internal/domain/integration"
	"github.com/titledesk/backend/internal/domain/title"
	"github.com/titledesk/backend/internal/infrastructure/workflow"
)

// MockOrderReader implements title.OrderReader for testing
type MockOrderReader struct {
	mock.Mock
}

func (m *MockOrderReader) FindByID(ctx context.Context, id uuid.UUID) (*title.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*title.Order), args.Error(1)
}

var _ title.OrderReader = (*MockOrderReader)(nil)

// MockTrackerClient implements integration.TrackerClient for testing
type MockTrackerClient struct {
	mock.Mock
}

func (m *MockTrackerClient) ListProjects(ctx context.Context, userID uuid.UUID) ([]integration.TrackerProject, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.TrackerProject), args.Error(1)
}

func (m *MockTrackerClient) GetProject(ctx context.Context, userID uuid.UUID, projectID string) (*integration.TrackerProject, error) {
	args := m.Called(ctx, userID, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TrackerProject), args.Error(1)
}

func (m *MockTrackerClient) ListLists(ctx context.Context, userID uuid.UUID, projectID string) ([]integration.TrackerList, error) {
	args := m.Called(ctx, userID, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.TrackerList), args.Error(1)
}

func (m *MockTrackerClient) CreateList(ctx context.Context, userID uuid.UUID, req integration.CreateListRequest) (*integration.TrackerList, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TrackerList), args.Error(1)
}

func (m *MockTrackerClient) ListGroups(ctx context.Context, userID uuid.UUID, listID string) ([]integration.TrackerGroup, error) {
	args := m.Called(ctx, userID, listID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.TrackerGroup), args.Error(1)
}

func (m *MockTrackerClient) CreateGroup(ctx context.Context, userID uuid.UUID, req integration.CreateGroupRequest) (*integration.TrackerGroup, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TrackerGroup), args.Error(1)
}

func (m *MockTrackerClient) CreateTask(ctx context.Context, userID uuid.UUID, req integration.CreateTaskRequest) (*integration.TrackerTask, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TrackerTask), args.Error(1)
}

func (m *MockTrackerClient) UpdateTask(ctx context.Context, userID uuid.UUID, req integration.UpdateTaskRequest) (*integration.TrackerTask, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TrackerTask), args.Error(1)
}

func (m *MockTrackerClient) AddComment(ctx context.Context, userID uuid.UUID, req integration.AddCommentRequest) (*integration.TrackerComment, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.TrackerComment), args.Error(1)
}

var _ integration.TrackerClient = (*MockTrackerClient)(nil)

// MockLinkResolver implements integrationapp.DeliveryLinkResolver for testing
type MockLinkResolver struct {
	mock.Mock
}

func (m *MockLinkResolver) ResolveDeliveryLink(ctx context.Context, objectKey string) (string, error) {
	args := m.Called(ctx, objectKey)
	return args.String(0), args.Error(1)
}

var _ integrationapp.DeliveryLinkResolver = (*MockLinkResolver)(nil)

// stubStrategy is a canned workflow strategy for handler tests
type stubStrategy struct {
	productType integration.ProductType
	projectID   string
	lists       []integration.WorkItemList
	buildErr    error
}

func (s *stubStrategy) Type() integration.ProductType { return s.productType }
func (s *stubStrategy) ProjectID() string             { return s.projectID }
func (s *stubStrategy) Applies(*title.Order) bool     { return true }
func (s *stubStrategy) Build(*title.Order) ([]integration.WorkItemList, error) {
	return s.lists, s.buildErr
}

var _ integration.WorkflowStrategy = (*stubStrategy)(nil)

// Test helpers

func setupPushTestRouter(strategies ...integration.WorkflowStrategy) (*gin.Engine, *MockOrderReader, *MockTrackerClient, *PushHandler) {
	gin.SetMode(gin.TestMode)

	mockOrders := new(MockOrderReader)
	mockClient := new(MockTrackerClient)
	mockLinks := new(MockLinkResolver)

	registry := workflow.NewRegistry()
	for _, s := range strategies {
		registry.Register(s)
	}

	service := integrationapp.NewPushService(mockOrders, mockClient, registry, mockLinks, zap.NewNop())
	handler := NewPushHandler(service, nil)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		setJWTContext(c, uuid.New())
		c.Next()
	})
	router.POST("/orders/:id/tracker-push", handler.PushOrder)

	return router, mockOrders, mockClient, handler
}

func createTestOrder(orderID uuid.UUID) *title.Order {
	return &title.Order{
		ID:        orderID,
		Number:    "1001",
		OrderDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func leaseListFixture() []integration.WorkItemList {
	return []integration.WorkItemList{
		{
			Name:   "#1001 - BLM",
			Groups: []integration.WorkItemGroup{{Name: "Runsheets"}},
			Tasks: []integration.WorkItemTask{
				{Name: "Lease TX-001", GroupName: "Runsheets"},
				{Name: "Lease TX-002", GroupName: "Runsheets"},
			},
		},
	}
}

// Tests

func TestPushHandler_PushOrder(t *testing.T) {
	t.Run("should push all applicable product types with absent body", func(t *testing.T) {
		strategy := &stubStrategy{
			productType: integration.ProductTypeLeaseRunsheets,
			projectID:   "9001",
			lists:       leaseListFixture(),
		}
		router, mockOrders, mockClient, _ := setupPushTestRouter(strategy)

		orderID := uuid.New()
		mockOrders.On("FindByID", mock.Anything, orderID).
			Return(createTestOrder(orderID), nil)
		mockClient.On("GetProject", mock.Anything, mock.Anything, "9001").
			Return(&integration.TrackerProject{ID: "9001", Name: "Runsheets", BoardID: "77001"}, nil)
		mockClient.On("CreateList", mock.Anything, mock.Anything, mock.AnythingOfType("integration.CreateListRequest")).
			Return(&integration.TrackerList{ID: "900100", Name: "#1001 - BLM", URL: "https://tracker.example.com/lists/900100"}, nil)
		mockClient.On("CreateGroup", mock.Anything, mock.Anything, mock.AnythingOfType("integration.CreateGroupRequest")).
			Return(&integration.TrackerGroup{ID: "g1", Name: "Runsheets"}, nil)
		mockClient.On("CreateTask", mock.Anything, mock.Anything, mock.AnythingOfType("integration.CreateTaskRequest")).
			Return(&integration.TrackerTask{ID: "t1", Name: "Lease"}, nil).Twice()

		req, _ := http.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/tracker-push", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.True(t, response["success"].(bool))

		data := response["data"].(map[string]interface{})
		assert.Equal(t, orderID.String(), data["order_id"])
		assert.Len(t, data["succeeded"], 1)
		assert.Empty(t, data["failed"])

		succeeded := data["succeeded"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "lease_runsheets", succeeded["product_type"])
		lists := succeeded["lists"].([]interface{})
		assert.Len(t, lists, 1)
		assert.Equal(t, "https://tracker.example.com/lists/900100", lists[0].(map[string]interface{})["url"])

		mockOrders.AssertExpectations(t)
		mockClient.AssertExpectations(t)
	})

	t.Run("should report per-type failure in the outcome with 200", func(t *testing.T) {
		strategy := &stubStrategy{
			productType: integration.ProductTypeLeaseRunsheets,
			projectID:   "9001",
			lists:       leaseListFixture(),
		}
		router, mockOrders, mockClient, _ := setupPushTestRouter(strategy)

		orderID := uuid.New()
		mockOrders.On("FindByID", mock.Anything, orderID).
			Return(createTestOrder(orderID), nil)
		mockClient.On("GetProject", mock.Anything, mock.Anything, "9001").
			Return(&integration.TrackerProject{ID: "9001", Name: "Runsheets", BoardID: "77001"}, nil)
		mockClient.On("CreateList", mock.Anything, mock.Anything, mock.AnythingOfType("integration.CreateListRequest")).
			Return(nil, integration.ErrDuplicateList)

		req, _ := http.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/tracker-push", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.True(t, response["success"].(bool))

		data := response["data"].(map[string]interface{})
		assert.Empty(t, data["succeeded"])
		assert.Len(t, data["failed"], 1)

		failed := data["failed"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "lease_runsheets", failed["product_type"])
		assert.Contains(t, failed["reason"], "already exists")

		mockClient.AssertExpectations(t)
	})

	t.Run("should push only the requested product type", func(t *testing.T) {
		leaseStrategy := &stubStrategy{
			productType: integration.ProductTypeLeaseRunsheets,
			projectID:   "9001",
			lists:       leaseListFixture(),
		}
		abstractStrategy := &stubStrategy{
			productType: integration.ProductTypeAbstractReports,
			projectID:   "9002",
			lists: []integration.WorkItemList{
				{Name: "#1001 Abstract", Tasks: []integration.WorkItemTask{{Name: "Examination"}}},
			},
		}
		router, mockOrders, mockClient, _ := setupPushTestRouter(leaseStrategy, abstractStrategy)

		orderID := uuid.New()
		mockOrders.On("FindByID", mock.Anything, orderID).
			Return(createTestOrder(orderID), nil)
		mockClient.On("GetProject", mock.Anything, mock.Anything, "9002").
			Return(&integration.TrackerProject{ID: "9002", Name: "Abstracts", BoardID: "77002"}, nil)
		mockClient.On("CreateList", mock.Anything, mock.Anything, mock.AnythingOfType("integration.CreateListRequest")).
			Return(&integration.TrackerList{ID: "900200", Name: "#1001 Abstract", URL: "https://tracker.example.com/lists/900200"}, nil)
		mockClient.On("CreateTask", mock.Anything, mock.Anything, mock.AnythingOfType("integration.CreateTaskRequest")).
			Return(&integration.TrackerTask{ID: "t1", Name: "Examination"}, nil)

		body, _ := json.Marshal(PushOrderRequest{ProductType: "abstract_reports"})
		req, _ := http.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/tracker-push", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)

		data := response["data"].(map[string]interface{})
		succeeded := data["succeeded"].([]interface{})
		assert.Len(t, succeeded, 1)
		assert.Equal(t, "abstract_reports", succeeded[0].(map[string]interface{})["product_type"])

		// The lease project was never touched
		mockClient.AssertNotCalled(t, "GetProject", mock.Anything, mock.Anything, "9001")
		mockClient.AssertExpectations(t)
	})

	t.Run("should return 404 for non-existent order", func(t *testing.T) {
		router, mockOrders, _, _ := setupPushTestRouter()

		orderID := uuid.New()
		mockOrders.On("FindByID", mock.Anything, orderID).
			Return(nil, title.ErrOrderNotFound)

		req, _ := http.NewRequest(http.MethodPost, "/orders/"+orderID.String()+"/tracker-push", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var response map[string]interface{}
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.False(t, response["success"].(bool))

		mockOrders.AssertExpectations(t)
	})

	t.Run("should return error for invalid order ID", func(t *testing.T) {
		router, _, _, _ := setupPushTestRouter()

		req, _ := http.NewRequest(http.MethodPost, "/orders/not-a-uuid/tracker-push", nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("should reject an unknown product type in the body", func(t *testing.T) {
		router, _, _, _ := setupPushTestRouter()

		body := []byte(`{"product_type": "appraisals"}`)
		req, _ := http.NewRequest(http.MethodPost, "/orders/"+uuid.New().String()+"/tracker-push", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
