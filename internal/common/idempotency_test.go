package common_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sehaty-app/backend-sehaty/internal/common"
)

func idemHandler(t *testing.T) (http.Handler, *int) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		common.JSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	mw := common.Idem{R: rdb, TTL: time.Minute}
	return mw.Middleware(inner), &calls
}

func TestIdempotencyReplayRejected(t *testing.T) {
	h, calls := idemHandler(t)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
	first.Header.Set("Idempotency-Key", "pay-booking-1700000000000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, first)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, *calls)

	replay := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
	replay.Header.Set("Idempotency-Key", "pay-booking-1700000000000")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, replay)

	require.Equal(t, http.StatusConflict, rr.Code)
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "IDEMPOTENT_REPLAY", resp.Error.Code)
	require.Equal(t, "duplicate request", resp.Error.Message)
	require.Equal(t, 1, *calls)
}

func TestIdempotencyDistinctKeys(t *testing.T) {
	h, calls := idemHandler(t)

	for i, key := range []string{"pay-booking-1", "pay-booking-2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
		req.Header.Set("Idempotency-Key", key)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, i+1, *calls)
	}
}

func TestIdempotencyNoHeaderPassesThrough(t *testing.T) {
	h, calls := idemHandler(t)

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	require.Equal(t, 2, *calls)
}

func TestIdempotencyNilClientPassesThrough(t *testing.T) {
	calls := 0
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	})
	h := common.Idem{TTL: time.Minute}.Middleware(inner)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", nil)
	req.Header.Set("Idempotency-Key", "pay-booking-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, 1, calls)
}
