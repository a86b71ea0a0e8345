package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/FACorreiaa/go-travel-planner/config"
	"github.com/FACorreiaa/go-travel-planner/internal/api/auth"
	"github.com/FACorreiaa/go-travel-planner/internal/api/expenses"
	"github.com/FACorreiaa/go-travel-planner/internal/api/geo"
	"github.com/FACorreiaa/go-travel-planner/internal/api/llm"
	"github.com/FACorreiaa/go-travel-planner/internal/api/mapview"
	"github.com/FACorreiaa/go-travel-planner/internal/api/planner"
	"github.com/FACorreiaa/go-travel-planner/internal/api/plans"
	"github.com/FACorreiaa/go-travel-planner/internal/api/reconcile"
	"github.com/FACorreiaa/go-travel-planner/internal/router"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

const (
	e2eSecret   = "e2e-secret"
	e2eAudience = "authenticated"
)

const cannedItinerary = `{
  "itineraryByDay": [
    {"title": "第一天 西湖", "date": "2025-05-01",
     "activities": [{"time": "09:00", "title": "游船", "costCNY": "55"}, "雷峰塔"],
     "mapPOIs": [{"name": "西湖", "lat": 30.2500, "lng": 120.1500}, {"name": "雷峰塔", "lat": 30.2310, "lng": 120.1490}]},
    {"title": "第二天 灵隐", "activities": [],
     "mapPOIs": [{"name": "西湖湖心亭", "lat": 30.25001, "lng": 120.15002}, {"name": "灵隐寺", "lat": 30.2408, "lng": 120.1011}]}
  ],
  "transport": {"name": "高铁"},
  "lodging": ["湖滨酒店", {"title": "青旅"}],
  "restaurants": "楼外楼",
  "tips": null,
  "totalEstimatedCost": "2400",
  "budgetBreakdown": [{"category": "住宿", "amount": 800}]
}`

// stubCompleter returns one canned document.
type stubCompleter struct{ reply string }

func (s stubCompleter) Complete(context.Context, string, string) (string, error) { return s.reply, nil }
func (s stubCompleter) Name() string                                              { return "stub" }

type stubGeo struct{}

func (stubGeo) SearchPlace(_ context.Context, query string) (*types.LocationInfo, bool) {
	switch query {
	case "上海":
		return &types.LocationInfo{Name: "上海市", Lat: 31.2304, Lng: 121.4737}, true
	case "杭州":
		return &types.LocationInfo{Name: "杭州市", Lat: 30.2741, Lng: 120.1551}, true
	}
	return nil, false
}

func (stubGeo) GetRoute(context.Context, float64, float64, float64, float64, int) (*types.RouteInfo, bool) {
	return &types.RouteInfo{Distance: 175000, Duration: 7200, Steps: []types.RouteStep{{Instruction: "沿G60行驶", Distance: 175000, Duration: 7200}}}, true
}

func (stubGeo) DefaultTactics() int { return geo.TacticsAvoidHighways }

// memoryStore keeps plans and expenses in memory with the same ownership rules
// as the Postgres repositories.
type memoryStore struct {
	mu       sync.Mutex
	plans    map[uuid.UUID]types.TravelPlan
	expenses map[uuid.UUID]memoryExpense
}

type memoryExpense struct {
	userID uuid.UUID
	types.Expense
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		plans:    make(map[uuid.UUID]types.TravelPlan),
		expenses: make(map[uuid.UUID]memoryExpense),
	}
}

type memoryPlans struct{ *memoryStore }

func (m memoryPlans) ListActive(_ context.Context, userID uuid.UUID) ([]types.TravelPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.TravelPlan{}
	for _, p := range m.plans {
		if p.UserID == userID && p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m memoryPlans) Get(_ context.Context, userID, planID uuid.UUID) (*types.TravelPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok || p.UserID != userID || !p.IsActive {
		return nil, types.ErrNotFound
	}
	return &p, nil
}

func (m memoryPlans) Create(_ context.Context, userID uuid.UUID, params types.CreatePlanRequest) (*types.TravelPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	p := types.TravelPlan{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       params.Title,
		Destination: params.Destination,
		Days:        params.Days,
		Preferences: params.Preferences,
		Language:    params.Language,
		PlanData:    params.PlanData,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.plans[p.ID] = p
	return &p, nil
}

func (m memoryPlans) SoftDelete(_ context.Context, userID, planID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok || p.UserID != userID || !p.IsActive {
		return types.ErrNotFound
	}
	p.IsActive = false
	p.UpdatedAt = time.Now()
	m.plans[planID] = p
	return nil
}

type memoryExpenses struct{ *memoryStore }

func (m memoryExpenses) ListByPlan(_ context.Context, userID, planID uuid.UUID) ([]types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.Expense{}
	for _, e := range m.expenses {
		if e.userID == userID && e.PlanID == planID.String() {
			out = append(out, e.Expense)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m memoryExpenses) Create(_ context.Context, userID, planID uuid.UUID, e types.Expense) (*types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.plans[planID]; !ok || p.UserID != userID || !p.IsActive {
		return nil, types.ErrNotFound
	}
	id := uuid.New()
	e.ID = id.String()
	e.PlanID = planID.String()
	e.CreatedAt = time.Now()
	m.expenses[id] = memoryExpense{userID: userID, Expense: e}
	return &e, nil
}

func (m memoryExpenses) Update(_ context.Context, userID, expenseID uuid.UUID, e types.Expense) (*types.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.expenses[expenseID]
	if !ok || cur.userID != userID {
		return nil, types.ErrNotFound
	}
	cur.Category, cur.Title, cur.AmountCNY, cur.Date = e.Category, e.Title, e.AmountCNY, e.Date
	m.expenses[expenseID] = cur
	return &cur.Expense, nil
}

func (m memoryExpenses) Delete(_ context.Context, userID, expenseID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.expenses[expenseID]
	if !ok || cur.userID != userID {
		return types.ErrNotFound
	}
	delete(m.expenses, expenseID)
	return nil
}

// newTestHandler assembles the full HTTP stack over in-memory stores.
func newTestHandler(logger *slog.Logger, store *memoryStore, debounce time.Duration) (http.Handler, *reconcile.Debouncer) {
	plansService := plans.NewPlansService(memoryPlans{store}, logger)
	expensesRepo := memoryExpenses{store}
	debouncer := reconcile.NewDebouncer(debounce, logger)
	expensesService := expenses.NewExpensesService(expensesRepo, reconcile.NewReconciler(expensesRepo, logger), debouncer, logger)
	plannerService := planner.NewPlannerService(llm.NewGenerationService(stubCompleter{reply: cannedItinerary}, logger), stubGeo{}, logger)

	rc := &router.Config{
		AuthHandler:            auth.NewHandlerImpl(logger),
		PlannerHandler:         planner.NewHandlerImpl(plannerService, logger),
		GeoHandler:             geo.NewHandlerImpl(stubGeo{}, logger),
		PlansHandler:           plans.NewHandlerImpl(plansService, logger),
		ExpensesHandler:        expenses.NewHandlerImpl(expensesService, logger),
		MapViewHandler:         mapview.NewHandlerImpl(plansService, logger),
		AuthenticateMiddleware: auth.Authenticate(logger, config.JWTConfig{SecretKey: e2eSecret, Audience: e2eAudience}),
		AllowedOrigins:         []string{"http://localhost:5173"},
	}
	return newHTTPHandler(rc, logger, 5*time.Second), debouncer
}

func signToken(userID uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Email: "traveller@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{e2eAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	return token.SignedString([]byte(e2eSecret))
}

// E2ETestSuite drives complete workflows through the HTTP stack.
type E2ETestSuite struct {
	suite.Suite
	server    *httptest.Server
	client    *http.Client
	store     *memoryStore
	debouncer *reconcile.Debouncer
	userID    uuid.UUID
	authToken string
}

// SetupTest gives every workflow its own store, server and user.
func (s *E2ETestSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s.store = newMemoryStore()

	var handler http.Handler
	handler, s.debouncer = newTestHandler(logger, s.store, 20*time.Millisecond)
	s.server = httptest.NewServer(handler)
	s.client = s.server.Client()

	s.userID = uuid.New()
	token, err := signToken(s.userID)
	s.Require().NoError(err)
	s.authToken = token
}

func (s *E2ETestSuite) TearDownTest() {
	s.debouncer.Stop()
	s.server.Close()
}

func (s *E2ETestSuite) do(method, path string, body any, token string) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, data
}

func (s *E2ETestSuite) TestPlanLifecycleWorkflow() {
	t := s.T()

	// Generate
	resp, body := s.do(http.MethodPost, "/api/plan", map[string]any{
		"origin":      "上海",
		"destination": "杭州",
		"days":        2,
		"preferences": "美食，自然、 ",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var plan types.PlanResult
	require.NoError(t, json.Unmarshal(body, &plan))
	require.Len(t, plan.ItineraryByDay, 2)
	assert.Equal(t, []string{"高铁"}, plan.Transport)
	assert.Equal(t, []string{"湖滨酒店", "青旅"}, plan.Lodging)
	assert.Equal(t, []string{"楼外楼"}, plan.Restaurants)
	assert.Equal(t, []string{}, plan.Tips)
	require.NotNil(t, plan.TotalEstimatedCost)
	assert.Equal(t, 2400.0, *plan.TotalEstimatedCost)
	assert.Equal(t, "雷峰塔", plan.ItineraryByDay[0].Activities[1].Title)
	require.NotNil(t, plan.RouteInfo)
	assert.Equal(t, "杭州市", plan.DestinationLocation.Name)

	// Save
	planData, err := json.Marshal(plan)
	require.NoError(t, err)
	resp, body = s.do(http.MethodPost, "/api/plans", map[string]any{
		"destination": "杭州",
		"days":        2,
		"planData":    json.RawMessage(planData),
	}, s.authToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var saved types.PlanResponse
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.Equal(t, "杭州", saved.Plan.Title)
	assert.Equal(t, "zh", saved.Plan.Language)
	planID := saved.Plan.ID.String()

	// List
	resp, body = s.do(http.MethodGet, "/api/plans", nil, s.authToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed types.PlansResponse
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed.Plans, 1)

	// Map: four POIs collapse to three, plus origin, destination and the route line
	resp, body = s.do(http.MethodGet, "/api/plans/map?id="+planID, nil, s.authToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	fc, err := geojson.UnmarshalFeatureCollection(body)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 6)

	// Expenses: sync a local list, then edit it
	resp, body = s.do(http.MethodPost, "/api/expenses/sync", types.SyncExpensesRequest{
		PlanID: planID,
		Expenses: []types.Expense{
			{ID: "tmp-1", Title: "高铁票", AmountCNY: 73, Category: "交通"},
			{ID: "tmp-2", Title: "西湖游船", AmountCNY: 55, Category: "tickets"},
		},
	}, s.authToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var synced types.SyncExpensesResponse
	require.NoError(t, json.Unmarshal(body, &synced))
	assert.Equal(t, 2, synced.Inserted)
	require.Len(t, synced.Expenses, 2)
	assert.NotEqual(t, "tmp-1", synced.Expenses[0].ID)

	edited := []types.Expense{
		synced.Expenses[0],
		{ID: "tmp-3", Title: "楼外楼晚餐", AmountCNY: 320.5, Category: "餐饮"},
	}
	resp, body = s.do(http.MethodPost, "/api/expenses/sync", types.SyncExpensesRequest{PlanID: planID, Expenses: edited}, s.authToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &synced))
	assert.Equal(t, 1, synced.Deleted)
	assert.Equal(t, 1, synced.Updated)
	assert.Equal(t, 1, synced.Inserted)

	resp, body = s.do(http.MethodGet, "/api/expenses?plan_id="+planID, nil, s.authToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var remaining types.ExpensesResponse
	require.NoError(t, json.Unmarshal(body, &remaining))
	assert.Len(t, remaining.Expenses, 2)

	// Delete
	resp, _ = s.do(http.MethodDelete, "/api/plans?id="+planID, nil, s.authToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodDelete, "/api/plans?id="+planID, nil, s.authToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func (s *E2ETestSuite) TestDraftSyncWorkflow() {
	t := s.T()

	resp, body := s.do(http.MethodPost, "/api/plans", map[string]any{"destination": "成都"}, s.authToken)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var saved types.PlanResponse
	require.NoError(t, json.Unmarshal(body, &saved))
	planID := saved.Plan.ID.String()

	for _, amount := range []float64{10, 20, 30} {
		resp, _ = s.do(http.MethodPut, "/api/expenses/draft", types.SyncExpensesRequest{
			PlanID:   planID,
			Expenses: []types.Expense{{Title: "火锅", AmountCNY: amount, Category: "food"}},
		}, s.authToken)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	require.Eventually(t, func() bool {
		list, _ := memoryExpenses{s.store}.ListByPlan(context.Background(), s.userID, saved.Plan.ID)
		return len(list) == 1 && list[0].AmountCNY == 30
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *E2ETestSuite) TestErrorHandlingWorkflow() {
	t := s.T()

	resp, body := s.do(http.MethodPost, "/api/plan", map[string]any{"origin": "上海"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "destination is required")

	resp, body = s.do(http.MethodPost, "/api/route", map[string]any{"origin": "上海", "destination": "火星"}, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "火星")

	resp, _ = s.do(http.MethodGet, "/api/plans", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/plans", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/expenses", nil, s.authToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Another user's plan is invisible
	other, err := signToken(uuid.New())
	require.NoError(t, err)
	resp, body = s.do(http.MethodPost, "/api/plans", map[string]any{"destination": "厦门"}, s.authToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved types.PlanResponse
	require.NoError(t, json.Unmarshal(body, &saved))

	resp, _ = s.do(http.MethodPost, "/api/expenses", types.ExpenseParams{PlanID: saved.Plan.ID.String(), Notes: "x", AmountCNY: 1}, other)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, "/api/plans/map?id="+saved.Plan.ID.String(), nil, other)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func (s *E2ETestSuite) TestRouteWorkflow() {
	resp, body := s.do(http.MethodPost, "/api/route", types.RouteRequest{Origin: "上海", Destination: "杭州"}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode, string(body))

	var route types.RouteResponse
	s.Require().NoError(json.Unmarshal(body, &route))
	s.Equal("上海市", route.OriginLocation.Name)
	s.Require().NotNil(route.RouteInfo)
	s.Equal(175000.0, route.RouteInfo.Distance)
}

func TestE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	suite.Run(t, new(E2ETestSuite))
}
