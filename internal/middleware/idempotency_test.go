package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/apperrors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

func newIdemRouter(store IdempotencyStore, handled *atomic.Int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/repay",
		ExecutorMiddleware(NewExecutorRateLimiter(0, 0)),
		IdempotencyMiddleware(store),
		func(c *gin.Context) {
			n := handled.Add(1)
			c.JSON(http.StatusOK, gin.H{"execution": n})
		})
	return r
}

func doRepay(r *gin.Engine, idemKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/repay", nil)
	req.Header.Set(HeaderExecutorAddress, "0xeeee000000000000000000000000000000000001")
	if idemKey != "" {
		req.Header.Set(HeaderIdempotencyKey, idemKey)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyReplaysCachedResponse(t *testing.T) {
	var handled atomic.Int64
	r := newIdemRouter(NewInMemIdempotencyStore(), &handled)

	first := doRepay(r, "key-1")
	second := doRepay(r, "key-1")

	if first.Code != http.StatusOK || second.Code != http.StatusOK {
		t.Fatalf("statuses = %d, %d", first.Code, second.Code)
	}
	if handled.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", handled.Load())
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replay body differs: %q vs %q", first.Body.String(), second.Body.String())
	}
}

func TestIdempotencyDistinctKeysExecuteSeparately(t *testing.T) {
	var handled atomic.Int64
	r := newIdemRouter(NewInMemIdempotencyStore(), &handled)

	doRepay(r, "key-1")
	doRepay(r, "key-2")

	if handled.Load() != 2 {
		t.Fatalf("handler ran %d times, want 2", handled.Load())
	}
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	var handled atomic.Int64
	r := newIdemRouter(NewInMemIdempotencyStore(), &handled)

	doRepay(r, "")
	doRepay(r, "")

	if handled.Load() != 2 {
		t.Fatalf("handler ran %d times, want 2", handled.Load())
	}
}

func TestIdempotencyInProgressConflicts(t *testing.T) {
	store := NewInMemIdempotencyStore()
	var handled atomic.Int64
	r := newIdemRouter(store, &handled)

	executor := common.HexToAddress("0xeeee000000000000000000000000000000000001")
	// Simulate a concurrent in-flight request holding the lock.
	store.GetOrLock(executor.Hex() + ":key-1")

	w := doRepay(r, "key-1")
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if handled.Load() != 0 {
		t.Fatalf("handler should not run while request is in progress")
	}
}

func TestIdempotencyReplaysBusinessRejection(t *testing.T) {
	store := NewInMemIdempotencyStore()
	var handled atomic.Int64
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.POST("/repay",
		ExecutorMiddleware(NewExecutorRateLimiter(0, 0)),
		IdempotencyMiddleware(store),
		func(c *gin.Context) {
			handled.Add(1)
			c.Error(apperrors.NewCapExceeded("allowance exhausted"))
		})

	first := doRepay(r, "key-1")
	if first.Code != http.StatusUnprocessableEntity {
		t.Fatalf("first status = %d, want 422", first.Code)
	}

	second := doRepay(r, "key-1")
	if second.Code != http.StatusUnprocessableEntity {
		t.Fatalf("replayed rejection status = %d, want 422", second.Code)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(second.Body.Bytes(), &body); err != nil {
		t.Fatalf("replayed body not JSON: %v (%q)", err, second.Body.String())
	}
	if body.Code != string(apperrors.ErrCapExceeded) {
		t.Fatalf("replayed code = %q, want CAP_EXCEEDED", body.Code)
	}
	if handled.Load() != 1 {
		t.Fatalf("handler ran %d times, want 1", handled.Load())
	}
}

func TestIdempotencyServerErrorNotCached(t *testing.T) {
	store := NewInMemIdempotencyStore()
	var calls atomic.Int64
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/repay",
		ExecutorMiddleware(NewExecutorRateLimiter(0, 0)),
		IdempotencyMiddleware(store),
		func(c *gin.Context) {
			if calls.Add(1) == 1 {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "transient"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})

	first := doRepay(r, "retry-key")
	second := doRepay(r, "retry-key")

	if first.Code != http.StatusInternalServerError {
		t.Fatalf("first status = %d, want 500", first.Code)
	}
	if second.Code != http.StatusOK {
		t.Fatalf("retry after 5xx should re-execute, got %d", second.Code)
	}
	if calls.Load() != 2 {
		t.Fatalf("handler ran %d times, want 2", calls.Load())
	}
}

func TestExecutorRateLimiterBlocksBurst(t *testing.T) {
	var handled atomic.Int64
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/repay",
		ExecutorMiddleware(NewExecutorRateLimiter(1, 2)),
		func(c *gin.Context) {
			handled.Add(1)
			c.Status(http.StatusOK)
		})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, doRepay(r, "").Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Fatalf("burst requests rejected: %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("third request not limited: %v", codes)
	}
}

func TestExecutorMiddlewareRejectsMalformedAddress(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/repay", ExecutorMiddleware(NewExecutorRateLimiter(0, 0)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/repay", nil)
	req.Header.Set(HeaderExecutorAddress, "not-hex")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
