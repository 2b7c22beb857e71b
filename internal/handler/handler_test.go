package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Baptiste-Yucca/rent2repay/internal/config"
	"github.com/Baptiste-Yucca/rent2repay/internal/middleware"
	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/service"
	"github.com/Baptiste-Yucca/rent2repay/internal/transfer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const (
	testUserHex     = "0x1111000000000000000000000000000000000001"
	testExecutorHex = "0x2222000000000000000000000000000000000002"
	testTokenHex    = "0x3333000000000000000000000000000000000003"
	testSinkHex     = "0x4444000000000000000000000000000000000004"
	testDaoHex      = "0x5555000000000000000000000000000000000005"
	testAdminHex    = "0x6666000000000000000000000000000000000006"
	testAdminKey    = "test-admin-key"
)

type testServer struct {
	router *gin.Engine
	ledger *transfer.Ledger
	ctrl   *service.Controller
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	window := service.NewWindowTracker(604800)
	registry := service.NewRegistry(service.NewMemoryAuthStore(window), window, nil)

	ctrl, err := service.NewController(common.HexToAddress(testAdminHex), model.FeeParameters{
		BotFeeBps:       50,
		DaoFeeBps:       20,
		DaoFeeRecipient: common.HexToAddress(testDaoHex),
	}, nil)
	require.NoError(t, err)

	assets := service.NewAssetBook([]config.AssetConfig{{
		Symbol:   "USDC",
		Address:  testTokenHex,
		Decimals: 6,
		DebtSink: testSinkHex,
	}})

	ledger := transfer.NewLedger()
	engine := service.NewEngine(ctrl, registry, ledger, assets, nil)

	cfg := &config.Config{}
	cfg.Auth.AdminKey = testAdminKey
	cfg.Auth.AdminAddress = testAdminHex

	authH := NewAuthorizationHandler(registry, window, assets)
	repayH := NewRepayHandler(engine, assets)
	adminH := NewAdminHandler(ctrl)

	router := gin.New()
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/v1")
	auths := v1.Group("/authorizations")
	{
		auths.POST("", authH.Configure)
		auths.DELETE("/:asset", authH.Revoke)
		auths.GET("/:user/:asset", authH.Get)
	}
	repay := v1.Group("/repay")
	repay.Use(middleware.ExecutorMiddleware(middleware.NewExecutorRateLimiter(0, 0)))
	{
		repay.POST("", repayH.Trigger)
	}
	admin := v1.Group("/admin")
	admin.POST("/accept", adminH.AcceptAdmin)
	admin.Use(middleware.AdminMiddleware(cfg, ctrl))
	{
		admin.PUT("/fees", adminH.SetFees)
		admin.POST("/pause", adminH.Pause)
		admin.POST("/unpause", adminH.Unpause)
		admin.POST("/transfer", adminH.TransferAdmin)
		admin.POST("/upgrade", adminH.Upgrade)
		admin.GET("/state", adminH.State)
	}

	return &testServer{router: router, ledger: ledger, ctrl: ctrl}
}

func (s *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func userHeaders() map[string]string {
	return map[string]string{HeaderUserAddress: testUserHex}
}

func executorHeaders() map[string]string {
	return map[string]string{middleware.HeaderExecutorAddress: testExecutorHex}
}

func adminHeaders() map[string]string {
	return map[string]string{middleware.HeaderAdminKey: testAdminKey}
}

func (s *testServer) configure(t *testing.T, cap string) {
	t.Helper()
	w := s.do(http.MethodPost, "/v1/authorizations",
		model.ConfigureRequest{Asset: "USDC", PeriodCap: cap}, userHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestConfigureAndGetAuthorization(t *testing.T) {
	s := newTestServer(t)
	s.configure(t, "1000")

	w := s.do(http.MethodGet, "/v1/authorizations/"+testUserHex+"/USDC", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view model.AuthorizationView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.True(t, view.Authorized)
	require.Equal(t, "1000000000", view.PeriodCap) // 6 decimals
	require.Equal(t, "0", view.SpentThisPeriod)
	require.Equal(t, "1000000000", view.Available)
}

func TestConfigureRequiresUserHeader(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/authorizations",
		model.ConfigureRequest{Asset: "USDC", PeriodCap: "1000"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/v1/authorizations",
		model.ConfigureRequest{Asset: "USDC", PeriodCap: "1000"},
		map[string]string{HeaderUserAddress: "not-an-address"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestConfigureUnknownAsset(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/authorizations",
		model.ConfigureRequest{Asset: "DOGE", PeriodCap: "1000"}, userHeaders())
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "NOT_FOUND", errCode(t, w))
}

func TestRepayFlow(t *testing.T) {
	s := newTestServer(t)
	s.configure(t, "1000")
	s.ledger.Mint(common.HexToAddress(testTokenHex), common.HexToAddress(testUserHex),
		big.NewInt(10_000_000_000))

	w := s.do(http.MethodPost, "/v1/repay",
		model.RepayRequest{User: testUserHex, Asset: "USDC", Amount: "600"}, executorHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp model.RepayResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "600", resp.ExecutedAmount)
	require.Equal(t, "3", resp.BotFee)
	require.Equal(t, "1.2", resp.DaoFee)
	require.Equal(t, "595.8", resp.NetAmount)
	require.Equal(t, "USDC", resp.Asset)

	// Over-cap request shrinks to the remaining allowance.
	w = s.do(http.MethodPost, "/v1/repay",
		model.RepayRequest{User: testUserHex, Asset: "USDC", Amount: "500"}, executorHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "400", resp.ExecutedAmount)

	// Exhausted window surfaces a bot-actionable rejection.
	w = s.do(http.MethodPost, "/v1/repay",
		model.RepayRequest{User: testUserHex, Asset: "USDC", Amount: "1"}, executorHeaders())
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "NOTHING_TO_EXECUTE", errCode(t, w))
}

func TestRepayRequiresExecutorHeader(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/repay",
		model.RepayRequest{User: testUserHex, Asset: "USDC", Amount: "1"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRepayNotAuthorized(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/repay",
		model.RepayRequest{User: testUserHex, Asset: "USDC", Amount: "100"}, executorHeaders())
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "NOT_AUTHORIZED", errCode(t, w))
}

func TestRevokeStopsRepay(t *testing.T) {
	s := newTestServer(t)
	s.configure(t, "1000")

	w := s.do(http.MethodDelete, "/v1/authorizations/USDC", nil, userHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/v1/repay",
		model.RepayRequest{User: testUserHex, Asset: "USDC", Amount: "100"}, executorHeaders())
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Equal(t, "NOT_AUTHORIZED", errCode(t, w))
}

func TestAdminKeyGate(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/admin/pause", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/v1/admin/pause", nil,
		map[string]string{middleware.HeaderAdminKey: "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/v1/admin/pause", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, s.ctrl.Paused())
}

func TestPauseBlocksRepay(t *testing.T) {
	s := newTestServer(t)
	s.configure(t, "1000")
	s.ledger.Mint(common.HexToAddress(testTokenHex), common.HexToAddress(testUserHex),
		big.NewInt(10_000_000_000))

	w := s.do(http.MethodPost, "/v1/admin/pause", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/v1/repay",
		model.RepayRequest{User: testUserHex, Asset: "USDC", Amount: "100"}, executorHeaders())
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, "ENGINE_PAUSED", errCode(t, w))

	w = s.do(http.MethodPost, "/v1/admin/unpause", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/v1/repay",
		model.RepayRequest{User: testUserHex, Asset: "USDC", Amount: "100"}, executorHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAdminSetFeesValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPut, "/v1/admin/fees", model.SetFeesRequest{
		BotFeeBps: 9000, DaoFeeBps: 2000, DaoFeeRecipient: testDaoHex,
	}, adminHeaders())
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_CONFIGURATION", errCode(t, w))

	w = s.do(http.MethodPut, "/v1/admin/fees", model.SetFeesRequest{
		BotFeeBps: 100, DaoFeeBps: 40, DaoFeeRecipient: testDaoHex,
	}, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, uint64(100), s.ctrl.FeeParams().BotFeeBps)
}

func TestAdminTwoStepTransferOverHTTP(t *testing.T) {
	s := newTestServer(t)
	newAdmin := "0x7777000000000000000000000000000000000007"

	w := s.do(http.MethodPost, "/v1/admin/transfer",
		model.TransferAdminRequest{NewAdmin: newAdmin}, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, common.HexToAddress(newAdmin), s.ctrl.State().PendingAdmin)
	require.Equal(t, common.HexToAddress(testAdminHex), s.ctrl.State().Admin)

	// Wrong claimant is rejected, nominee succeeds.
	w = s.do(http.MethodPost, "/v1/admin/accept", nil,
		map[string]string{HeaderUserAddress: testUserHex})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/v1/admin/accept", nil,
		map[string]string{HeaderUserAddress: newAdmin})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, common.HexToAddress(newAdmin), s.ctrl.State().Admin)

	// The admin key keeps working after the handover: it maps to the
	// current admin, not the boot-time one.
	w = s.do(http.MethodPost, "/v1/admin/pause", nil, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, s.ctrl.Paused())
}

func TestAdminUpgradeBumpsVersion(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/v1/admin/upgrade", gin.H{"logic": "v1"}, adminHeaders())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, uint64(2), s.ctrl.State().Version)

	w = s.do(http.MethodPost, "/v1/admin/upgrade", gin.H{"logic": "unknown"}, adminHeaders())
	require.Equal(t, http.StatusBadRequest, w.Code)
}

type brokenAuthStore struct{}

func (brokenAuthStore) Get(ctx context.Context, user, asset common.Address) (*model.UserAuthorization, error) {
	return nil, errors.New("connection refused")
}
func (brokenAuthStore) Put(ctx context.Context, auth *model.UserAuthorization) error {
	return errors.New("connection refused")
}
func (brokenAuthStore) Reserve(ctx context.Context, user, asset common.Address, amount *big.Int, now int64) error {
	return errors.New("connection refused")
}
func (brokenAuthStore) Release(ctx context.Context, user, asset common.Address, amount *big.Int) error {
	return errors.New("connection refused")
}

func TestGetAuthorizationStoreErrorSurfaces(t *testing.T) {
	gin.SetMode(gin.TestMode)
	window := service.NewWindowTracker(604800)
	registry := service.NewRegistry(brokenAuthStore{}, window, nil)
	assets := service.NewAssetBook([]config.AssetConfig{{
		Symbol: "USDC", Address: testTokenHex, Decimals: 6, DebtSink: testSinkHex,
	}})
	authH := NewAuthorizationHandler(registry, window, assets)

	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.GET("/v1/authorizations/:user/:asset", authH.Get)

	req := httptest.NewRequest(http.MethodGet, "/v1/authorizations/"+testUserHex+"/USDC", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// A store failure must not render as an empty authorization.
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	require.Equal(t, "INTERNAL_ERROR", errCode(t, w))
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}
