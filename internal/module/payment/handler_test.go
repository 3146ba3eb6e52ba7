package payment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paymentTestRouter(svc *Service, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set("user_id", userID)
	})
	NewHandler(svc).RegisterRoutes(api)
	return router
}

func TestListPayments(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()

	seed := func(repo *fakeRepository) {
		mine := pendingMoneroIntent("pay-list-1")
		mine.OrderID = orderID
		mine.UserID = userID
		repo.add(mine)

		other := pendingMoneroIntent("pay-list-2")
		other.OrderID = orderID
		repo.add(other)

		unrelated := pendingMoneroIntent("pay-list-3")
		unrelated.UserID = userID
		repo.add(unrelated)
	}

	t.Run("returns only the caller's intents for the order", func(t *testing.T) {
		repo := newFakeRepository()
		seed(repo)
		svc, _ := newTestService(repo)
		router := paymentTestRouter(svc, userID)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments?order_id="+orderID.String(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Payments []IntentResponse `json:"payments"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Payments, 1)
		assert.Equal(t, orderID, body.Payments[0].OrderID)
		assert.Equal(t, "pay-list-1", body.Payments[0].ProviderReference)
	})

	t.Run("missing order id is a bad request", func(t *testing.T) {
		svc, _ := newTestService(newFakeRepository())
		router := paymentTestRouter(svc, userID)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("order with no intents returns an empty list", func(t *testing.T) {
		svc, _ := newTestService(newFakeRepository())
		router := paymentTestRouter(svc, userID)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/payments?order_id="+uuid.New().String(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Payments []IntentResponse `json:"payments"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Empty(t, body.Payments)
	})
}
