package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"rewards_webapp/internal/ads"
	"rewards_webapp/internal/domain"
	"rewards_webapp/internal/game"
	"rewards_webapp/internal/http/handlers"
	"rewards_webapp/internal/http/middleware"
	"rewards_webapp/internal/repository"
	"rewards_webapp/internal/rewards"
	"rewards_webapp/internal/service"
	"rewards_webapp/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
)

const (
	testBotToken = "123456:test-token"
	testAdSecret = "ad-secret"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)

type testServer struct {
	router *gin.Engine
	store  *repository.MemoryStore
	clock  *clockwork.FakeClock
}

func newTestServer(t *testing.T, perMinute int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fc := clockwork.NewFakeClockAt(testStart)
	store := repository.NewMemoryStore(fc)
	provider := ads.NewMemoryProvider(fc, time.Minute)
	wheel := game.NewWheelWithRand(func(int64) int64 { return 0 })

	svc := service.NewRewardsService(store, provider, wheel, fc, service.RewardsConfig{
		TaskLinks: []string{"https://t.me/a", "https://t.me/b", "https://t.me/c", "https://t.me/d"},
		TxTimeout: time.Second,
	})

	h := &handlers.Handler{
		Rewards:          svc,
		Sessions:         service.NewSessionIssuer("jwt-secret", time.Hour),
		Confirmer:        provider,
		Wheel:            wheel,
		Hub:              ws.NewHub(),
		BotToken:         testBotToken,
		BotUsername:      "rewards_bot",
		WebAppShortName:  "app",
		AdCallbackSecret: testAdSecret,
		Version:          "test",
		Now:              fc.Now,
	}
	return &testServer{
		router: NewRouter(h, middleware.NewRateLimiter(nil, perMinute)),
		store:  store,
		clock:  fc,
	}
}

// initData подписывает init_data так же, как это делает Telegram
func initData(t *testing.T, userID int64, username, startParam string, authDate time.Time) string {
	t.Helper()
	user, err := json.Marshal(map[string]any{"id": userID, "username": username, "first_name": username})
	require.NoError(t, err)

	values := url.Values{}
	values.Set("user", string(user))
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	if startParam != "" {
		values.Set("start_param", startParam)
	}

	var pairs []string
	for k := range values {
		pairs = append(pairs, k+"="+values.Get(k))
	}
	sort.Strings(pairs)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(testBotToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(pairs, "\n")))
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func (s *testServer) login(t *testing.T, userID int64, username, startParam string) string {
	t.Helper()
	w, body := s.do(t, nethttp.MethodPost, "/api/auth/telegram", "", gin.H{
		"init_data": initData(t, userID, username, startParam, testStart),
	})
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func userField(t *testing.T, body map[string]any, field string) any {
	t.Helper()
	u, ok := body["user"].(map[string]any)
	require.True(t, ok, "response has no user: %v", body)
	return u[field]
}

func TestAuthCreatesUserAndSpins(t *testing.T) {
	s := newTestServer(t, 1000)
	token := s.login(t, 1, "alice", "")

	w, body := s.do(t, nethttp.MethodPost, "/api/spin", token, nil)
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	require.EqualValues(t, 2, body["reward"])
	require.EqualValues(t, 2, userField(t, body, "points"))
	require.EqualValues(t, rewards.DailyFreeSpins-1, userField(t, body, "daily_spins_left"))
	require.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestAuthRejectsBadInitData(t *testing.T) {
	s := newTestServer(t, 1000)

	data := initData(t, 1, "alice", "", testStart)
	w, _ := s.do(t, nethttp.MethodPost, "/api/auth/telegram", "", gin.H{"init_data": data + "x"})
	require.Equal(t, nethttp.StatusUnauthorized, w.Code)

	stale := initData(t, 1, "alice", "", testStart.Add(-2*time.Hour))
	w, body := s.do(t, nethttp.MethodPost, "/api/auth/telegram", "", gin.H{"init_data": stale})
	require.Equal(t, nethttp.StatusUnauthorized, w.Code)
	require.Equal(t, "init data expired", body["error"])
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t, 1000)

	w, _ := s.do(t, nethttp.MethodGet, "/api/me", "", nil)
	require.Equal(t, nethttp.StatusUnauthorized, w.Code)

	w, _ = s.do(t, nethttp.MethodGet, "/api/me", "garbage", nil)
	require.Equal(t, nethttp.StatusUnauthorized, w.Code)
}

func TestPreconditionReturnsFreshRecord(t *testing.T) {
	s := newTestServer(t, 1000)
	token := s.login(t, 1, "alice", "")

	// бесплатные вращения еще есть
	w, body := s.do(t, nethttp.MethodPost, "/api/ad-spin", token, nil)
	require.Equal(t, nethttp.StatusBadRequest, w.Code)
	require.Equal(t, "precondition_failed", body["code"])
	require.EqualValues(t, rewards.DailyFreeSpins, userField(t, body, "daily_spins_left"))
	require.Contains(t, body, "eligibility")
}

func TestWatchAdNeedsCallback(t *testing.T) {
	s := newTestServer(t, 1000)
	token := s.login(t, 1, "alice", "")

	w, body := s.do(t, nethttp.MethodPost, "/api/watch-ad", token, nil)
	require.Equal(t, nethttp.StatusServiceUnavailable, w.Code)
	require.Equal(t, "external_dependency", body["code"])
	require.EqualValues(t, 0, userField(t, body, "points"))

	ts := testStart.Unix()
	q := url.Values{}
	q.Set("user_id", "1")
	q.Set("ts", strconv.FormatInt(ts, 10))
	q.Set("sig", "00")
	w, _ = s.do(t, nethttp.MethodGet, "/api/ads/callback?"+q.Encode(), "", nil)
	require.Equal(t, nethttp.StatusForbidden, w.Code)

	q.Set("sig", ads.Sign(testAdSecret, 1, ts))
	w, _ = s.do(t, nethttp.MethodGet, "/api/ads/callback?"+q.Encode(), "", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)

	w, body = s.do(t, nethttp.MethodPost, "/api/watch-ad", token, nil)
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	require.EqualValues(t, rewards.WatchAdReward, body["reward"])
	require.EqualValues(t, 1, userField(t, body, "daily_ads_watched"))

	// повтор того же callback после кулдауна не дает новой награды
	s.clock.Advance(26 * time.Second)
	w, _ = s.do(t, nethttp.MethodGet, "/api/ads/callback?"+q.Encode(), "", nil)
	require.Equal(t, nethttp.StatusConflict, w.Code)

	w, body = s.do(t, nethttp.MethodPost, "/api/watch-ad", token, nil)
	require.Equal(t, nethttp.StatusServiceUnavailable, w.Code)
	require.EqualValues(t, rewards.WatchAdReward, userField(t, body, "points"))
}

func TestTasksOpenAndClaim(t *testing.T) {
	s := newTestServer(t, 1000)
	token := s.login(t, 1, "alice", "")

	w, _ := s.do(t, nethttp.MethodPost, "/api/tasks/claim", token, nil)
	require.Equal(t, nethttp.StatusBadRequest, w.Code)

	for n := 1; n <= domain.TaskCount; n++ {
		w, body := s.do(t, nethttp.MethodPost, "/api/tasks/open/"+strconv.Itoa(n), token, nil)
		require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
		require.NotEmpty(t, body["task_link"])
	}

	w, _ = s.do(t, nethttp.MethodPost, "/api/tasks/open/x", token, nil)
	require.Equal(t, nethttp.StatusBadRequest, w.Code)

	w, body := s.do(t, nethttp.MethodPost, "/api/tasks/claim", token, nil)
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	require.EqualValues(t, rewards.TaskClaimReward, body["reward"])
}

func TestReferralFlow(t *testing.T) {
	s := newTestServer(t, 1000)
	aliceToken := s.login(t, 1, "alice", "")

	w, body := s.do(t, nethttp.MethodGet, "/api/referrals", aliceToken, nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	require.Equal(t, "Aalice", body["code"])
	require.Equal(t, "https://t.me/rewards_bot/app?startapp=ref_Aalice", body["link"])

	// код из ссылки применяется при первом входе
	s.login(t, 2, "bob", "ref_Aalice")

	w, body = s.do(t, nethttp.MethodGet, "/api/referrals", aliceToken, nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	require.EqualValues(t, 1, body["count"])
	require.Len(t, body["referrals"], 1)

	carolToken := s.login(t, 3, "carol", "")
	w, body = s.do(t, nethttp.MethodPost, "/api/referral", carolToken, gin.H{"code": "Acarol"})
	require.Equal(t, nethttp.StatusBadRequest, w.Code)
	require.Equal(t, "precondition_failed", body["code"])

	w, body = s.do(t, nethttp.MethodPost, "/api/referral", carolToken, gin.H{"code": "Aalice"})
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	require.EqualValues(t, rewards.ReferredBonus, userField(t, body, "points"))
}

func TestWithdrawalFlow(t *testing.T) {
	s := newTestServer(t, 1000)
	token := s.login(t, 1, "alice", "")

	ctx := context.Background()
	require.NoError(t, s.store.RunInTx(ctx, func(tx repository.Tx) error {
		u, err := tx.GetUserForUpdate(ctx, 1)
		if err != nil {
			return err
		}
		u.Points = 1750
		return tx.SaveUser(ctx, u)
	}))

	addr := address.NewAddress(0, 0, make([]byte, 32)).String()

	w, _ := s.do(t, nethttp.MethodPost, "/api/withdrawals", token, gin.H{"points": 1000, "method": "ton", "address": addr})
	require.Equal(t, nethttp.StatusBadRequest, w.Code)

	w, body := s.do(t, nethttp.MethodPost, "/api/withdrawals", token, gin.H{"points": 1750, "method": "ton", "address": addr})
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	require.EqualValues(t, 0, userField(t, body, "points"))
	require.Equal(t, true, userField(t, body, "claimed_first_withdrawal"))

	w, body = s.do(t, nethttp.MethodGet, "/api/withdrawals", token, nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	list, ok := body["withdrawals"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	require.Equal(t, "pending", list[0].(map[string]any)["status"])
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	token := s.login(t, 1, "alice", "")

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w, _ := s.do(t, nethttp.MethodGet, "/api/eligibility", token, nil)
		codes = append(codes, w.Code)
	}
	require.Equal(t, []int{nethttp.StatusOK, nethttp.StatusOK, nethttp.StatusTooManyRequests}, codes)
}

func TestConfigAndHealth(t *testing.T) {
	s := newTestServer(t, 1000)

	w, body := s.do(t, nethttp.MethodGet, "/healthz", "", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	require.Equal(t, "test", body["version"])

	w, body = s.do(t, nethttp.MethodGet, "/api/config", "", nil)
	require.Equal(t, nethttp.StatusOK, w.Code)
	require.Len(t, body["task_links"], domain.TaskCount)
	require.NotEmpty(t, body["tiers"])
}
