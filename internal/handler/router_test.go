package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chips-casino/internal/game"
	"chips-casino/internal/game/crash"
	"chips-casino/internal/game/mines"
	"chips-casino/internal/game/roulette"
	"chips-casino/internal/game/slots"
	"chips-casino/internal/pkg/db"
	"chips-casino/internal/pkg/db/dbtest"
	"chips-casino/internal/pkg/metrics"
	"chips-casino/internal/pkg/rng"
	"chips-casino/internal/pkg/session"
	"chips-casino/internal/repository"
	"chips-casino/internal/service"
)

const (
	testStartingBalance = 1000
	crashGrace          = 2 * time.Second
)

type apiClient struct {
	t        *testing.T
	srv      *httptest.Server
	sessions *session.Manager
}

func newTestServer(t *testing.T) *apiClient {
	t.Helper()
	pool := dbtest.Setup(t)

	manager, err := db.NewTxManager(pool)
	require.NoError(t, err)

	m := metrics.New()
	users := repository.NewUserRepository(pool)
	txs := repository.NewTransactionRepository(pool)
	history := repository.NewHistoryRepository(pool)
	taskRepo := repository.NewTaskRepository(pool)

	ledger := service.NewLedger(manager, users, txs, history, nil, m)
	achievements := service.NewAchievementService(repository.NewAchievementRepository(pool))

	// three diamonds on every spin, and a crash point of 1.01 with a 2s
	// cash-out grace
	slotsGame := slots.New(&slots.Config{MinBet: 1, MaxBet: 10000, Source: &rng.Fixed{Ints: []int{10}}})
	minesGame := mines.New(&mines.Config{MinBet: 1, MaxBet: 10000})
	rouletteGame := roulette.New(&roulette.Config{MinBet: 1, MaxBet: 10000})
	crashGame := crash.New(&crash.Config{
		MinBet: 1, MaxBet: 10000, ClientTolerance: crashGrace, Source: &rng.Fixed{Floats: []float64{0}},
	})

	registry := game.NewRegistry()
	for _, g := range []game.Game{slotsGame, minesGame, rouletteGame, crashGame} {
		require.NoError(t, registry.Register(g))
	}

	sessions := session.NewManager("router-test-secret", "casino_session", time.Hour)
	router := NewRouter(&Deps{
		Sessions: sessions,
		Accounts: service.NewAccountService(ledger, service.AccountConfig{
			StartingBalance: testStartingBalance,
			DailyReward:     500,
			DailyCooldown:   24 * time.Hour,
		}),
		Slots:        service.NewSlotsService(ledger, slotsGame, achievements),
		Roulette:     service.NewRouletteService(ledger, rouletteGame, achievements),
		Mines:        service.NewMinesService(ledger, minesGame, repository.NewMinesRepository(pool), achievements),
		Crash:        service.NewCrashService(ledger, crashGame, repository.NewCrashRepository(pool), achievements),
		Tasks:        service.NewTaskService(ledger, taskRepo, achievements),
		Admin:        service.NewAdminService(ledger, taskRepo),
		History:      service.NewHistoryService(txs, history),
		Achievements: achievements,
		Challenges: service.NewChallengeService(ledger, repository.NewChallengeRepository(pool),
			&rng.Fixed{Ints: []int{0}}, service.DefaultChallengeConfig()),
		Registry:   registry,
		Metrics:    m,
		StreamTick: 10 * time.Millisecond,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiClient{t: t, srv: srv, sessions: sessions}
}

func (c *apiClient) token(id session.Identity) string {
	c.t.Helper()
	token, err := c.sessions.Issue(id)
	require.NoError(c.t, err)
	return token
}

func (c *apiClient) player() (uuid.UUID, string) {
	id := uuid.New()
	return id, c.token(session.Identity{UserID: id, Username: "player-" + id.String()[:8]})
}

// do sends body as JSON and decodes the response into a generic map.
func (c *apiClient) do(method, path, token string, body any) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.srv.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestRouterIntegration(t *testing.T) {
	c := newTestServer(t)

	t.Run("unauthenticated", func(t *testing.T) {
		status, body := c.do(http.MethodGet, "/api/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, "Unauthorized", body["error"])
	})

	t.Run("unknown route", func(t *testing.T) {
		status, body := c.do(http.MethodGet, "/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "Not found", body["error"])
	})

	t.Run("me creates the account", func(t *testing.T) {
		id, token := c.player()
		status, body := c.do(http.MethodGet, "/api/me", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, id.String(), body["id"])
		assert.EqualValues(t, testStartingBalance, body["balance"])
		assert.Equal(t, false, body["isAdmin"])
	})

	t.Run("catalog", func(t *testing.T) {
		_, token := c.player()
		status, body := c.do(http.MethodGet, "/api/games", token, nil)
		require.Equal(t, http.StatusOK, status)

		games, ok := body["games"].([]any)
		require.True(t, ok)
		var ids []string
		for _, g := range games {
			ids = append(ids, g.(map[string]any)["id"].(string))
		}
		assert.Equal(t, []string{"slots", "landmines", "roulette", "crash"}, ids)
	})

	t.Run("slots spin", func(t *testing.T) {
		_, token := c.player()
		status, body := c.do(http.MethodPost, "/api/games/slots/spin", token, map[string]any{"betAmount": 100})
		require.Equal(t, http.StatusOK, status)
		assert.EqualValues(t, 20, body["multiplier"])
		assert.EqualValues(t, 1900, body["net"])
		assert.EqualValues(t, testStartingBalance+1900, body["balance"])

		status, body = c.do(http.MethodGet, "/api/history?gameType=slots", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.NotEmpty(t, body["games"])

		status, body = c.do(http.MethodGet, "/api/achievements", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, body["achievements"], 3)
	})

	t.Run("slots validation", func(t *testing.T) {
		_, token := c.player()
		status, _ := c.do(http.MethodPost, "/api/games/slots/spin", token, map[string]any{"betAmount": 0})
		assert.Equal(t, http.StatusBadRequest, status)

		status, body := c.do(http.MethodPost, "/api/games/slots/spin", token, map[string]any{"betAmount": testStartingBalance + 1})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "insufficient balance", body["error"])
	})

	t.Run("mines session ownership", func(t *testing.T) {
		_, owner := c.player()
		_, other := c.player()

		status, body := c.do(http.MethodPost, "/api/games/landmines/start", owner,
			map[string]any{"betAmount": 100, "gridSize": 5, "mineCount": 5})
		require.Equal(t, http.StatusOK, status)
		assert.EqualValues(t, testStartingBalance-100, body["balance"])
		sess := body["session"].(map[string]any)
		sessionID := sess["id"].(string)
		assert.Nil(t, sess["mines"])

		status, body = c.do(http.MethodGet, "/api/games/landmines/"+sessionID, owner, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["isActive"])

		status, _ = c.do(http.MethodGet, "/api/games/landmines/"+sessionID, other, nil)
		assert.Equal(t, http.StatusForbidden, status)

		status, _ = c.do(http.MethodPost, "/api/games/landmines/reveal", owner, map[string]any{"sessionId": sessionID})
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = c.do(http.MethodPost, "/api/games/landmines/cashout", owner, map[string]any{"sessionId": sessionID})
		assert.Equal(t, http.StatusBadRequest, status)

		status, _ = c.do(http.MethodGet, "/api/games/landmines/not-a-uuid", owner, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("daily bonus", func(t *testing.T) {
		_, token := c.player()
		status, body := c.do(http.MethodPost, "/api/rewards/daily", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["claimed"])
		assert.EqualValues(t, testStartingBalance+500, body["balance"])

		status, body = c.do(http.MethodGet, "/api/rewards/daily", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, false, body["canClaim"])
	})

	t.Run("daily challenge", func(t *testing.T) {
		_, token := c.player()
		status, body := c.do(http.MethodGet, "/api/daily-challenges", token, nil)
		require.Equal(t, http.StatusOK, status)
		current := body["currentChallenge"].(map[string]any)
		assert.Equal(t, "slots", current["gameType"])
		assert.EqualValues(t, 10000, current["startingBalance"])
		assert.EqualValues(t, 50000, current["prizePool"])
		assert.Nil(t, body["userEntry"])
		assert.Empty(t, body["history"])
		challengeID := current["id"].(string)

		status, body = c.do(http.MethodPost, "/api/daily-challenges", token,
			map[string]any{"challengeId": challengeID, "action": "join"})
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, body["success"])
		assert.EqualValues(t, 10000, body["startingBalance"])
		assert.EqualValues(t, 10000, body["entry"].(map[string]any)["finalBalance"])

		status, _ = c.do(http.MethodPost, "/api/games/slots/spin", token, map[string]any{"betAmount": 100})
		require.Equal(t, http.StatusOK, status)

		status, body = c.do(http.MethodGet, "/api/daily-challenges?history=true", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.EqualValues(t, 11900, body["userEntry"].(map[string]any)["finalBalance"])

		status, body = c.do(http.MethodPost, "/api/daily-challenges", token,
			map[string]any{"challengeId": challengeID, "action": "update_balance", "data": map[string]any{"newBalance": 99999}})
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "challenge balance follows settled rounds", body["error"])

		status, body = c.do(http.MethodPost, "/api/daily-challenges", token,
			map[string]any{"challengeId": challengeID, "action": "restart"})
		require.Equal(t, http.StatusOK, status)
		entry := body["entry"].(map[string]any)
		assert.EqualValues(t, 2, entry["entriesCount"])
		assert.EqualValues(t, 10000, entry["finalBalance"])

		status, _ = c.do(http.MethodPost, "/api/daily-challenges", token, map[string]any{"action": "join"})
		assert.Equal(t, http.StatusBadRequest, status)

		status, body = c.do(http.MethodPost, "/api/daily-challenges", token,
			map[string]any{"challengeId": uuid.NewString(), "action": "join"})
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "challenge not found", body["error"])

		status, _ = c.do(http.MethodGet, "/api/daily-challenges?history=true&limit=x", token, nil)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("task status", func(t *testing.T) {
		_, token := c.player()
		status, body := c.do(http.MethodGet, "/api/tasks/status", token, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "idle", body["status"])

		// a funded account cannot start recovery tasks
		status, _ = c.do(http.MethodPost, "/api/tasks/start", token, map[string]any{"taskType": "math"})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("admin", func(t *testing.T) {
		target, player := c.player()
		c.do(http.MethodGet, "/api/me", player, nil)

		status, _ := c.do(http.MethodPost, "/api/admin/add-chips", player,
			map[string]any{"userId": target.String(), "amount": 50})
		assert.Equal(t, http.StatusForbidden, status)

		admin := c.token(session.Identity{UserID: uuid.New(), Username: "root", Admin: true})
		status, body := c.do(http.MethodPost, "/api/admin/add-chips", admin,
			map[string]any{"userId": target.String(), "amount": 50, "reason": "support"})
		require.Equal(t, http.StatusOK, status)
		assert.EqualValues(t, testStartingBalance+50, body["balance"])

		status, body = c.do(http.MethodGet, "/api/admin/tasks/config", admin, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, body["configs"], 5)

		status, _ = c.do(http.MethodPut, "/api/admin/tasks/config", admin, map[string]any{"taskType": "math"})
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestCrashStream(t *testing.T) {
	c := newTestServer(t)
	_, token := c.player()

	status, body := c.do(http.MethodPost, "/api/games/crash/start", token, map[string]any{"betAmount": 100})
	require.Equal(t, http.StatusOK, status)
	roundID := body["roundId"].(string)
	assert.EqualValues(t, 1.01, body["crashMultiplier"])

	url := "ws" + strings.TrimPrefix(c.srv.URL, "http") + "/api/games/crash/stream?roundId=" + roundID
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var last streamMessage
	for last.Type != msgCrashed && last.Type != msgFinished {
		require.NoError(t, conn.ReadJSON(&last))
		assert.LessOrEqual(t, last.Multiplier, 1.01)
	}
	assert.Equal(t, msgCrashed, last.Type)
	assert.Equal(t, 1.01, last.CrashMultiplier)

	status, body = c.do(http.MethodPost, "/api/games/crash/resolve", token, map[string]any{"roundId": roundID})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "round already finished", body["error"])

	status, body = c.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, testStartingBalance-100, body["balance"])
}

func TestCrashStreamHoldsForLateCashOut(t *testing.T) {
	c := newTestServer(t)
	_, token := c.player()

	status, body := c.do(http.MethodPost, "/api/games/crash/start", token, map[string]any{"betAmount": 100})
	require.Equal(t, http.StatusOK, status)
	roundID := body["roundId"].(string)

	url := "ws" + strings.TrimPrefix(c.srv.URL, "http") + "/api/games/crash/stream?roundId=" + roundID
	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var first streamMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, msgTick, first.Type)

	// the server curve is past 1.01, the click was made before it
	time.Sleep(100 * time.Millisecond)
	status, body = c.do(http.MethodPost, "/api/games/crash/cashout", token,
		map[string]any{"roundId": roundID, "elapsedSeconds": 0.001})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["crashed"])
	assert.EqualValues(t, 100, body["payout"])

	var last streamMessage
	for last.Type != msgCrashed && last.Type != msgFinished {
		require.NoError(t, conn.ReadJSON(&last))
	}
	assert.Equal(t, msgFinished, last.Type)
	assert.Equal(t, string(crash.StateCashedOut), last.State)

	status, body = c.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, testStartingBalance, body["balance"])
}

func TestCrashStreamRejectsForeignRound(t *testing.T) {
	c := newTestServer(t)
	_, owner := c.player()
	_, other := c.player()

	status, body := c.do(http.MethodPost, "/api/games/crash/start", owner, map[string]any{"betAmount": 10})
	require.Equal(t, http.StatusOK, status)

	url := "ws" + strings.TrimPrefix(c.srv.URL, "http") + "/api/games/crash/stream?roundId=" + body["roundId"].(string)
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + other}})
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
