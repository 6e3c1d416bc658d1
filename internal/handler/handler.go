// Package handler serves the casino JSON API.
//
// Every route under /api requires a session token. Handlers decode the
// request, call one service method and write its result; status codes come
// from the error mapping in respond.go.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chips-casino/internal/game"
	"chips-casino/internal/pkg/metrics"
	"chips-casino/internal/pkg/session"
	"chips-casino/internal/service"
)

// Rate limit groups.
const (
	groupGames   = "games"
	groupRewards = "rewards"
)

// Deps holds everything the router needs.
type Deps struct {
	Sessions     *session.Manager
	Accounts     *service.AccountService
	Slots        *service.SlotsService
	Roulette     *service.RouletteService
	Mines        *service.MinesService
	Crash        *service.CrashService
	Tasks        *service.TaskService
	Admin        *service.AdminService
	History      *service.HistoryService
	Achievements *service.AchievementService
	Challenges   *service.ChallengeService
	Registry     *game.Registry
	Metrics      *metrics.Metrics
	// Limiter may be nil to disable rate limiting.
	Limiter        Limiter
	AllowedOrigins []string
	// StreamTick is the crash stream interval. Zero means 100ms.
	StreamTick time.Duration
}

// Handler holds the services behind the API.
type Handler struct {
	accounts     *service.AccountService
	slots        *service.SlotsService
	roulette     *service.RouletteService
	mines        *service.MinesService
	crash        *service.CrashService
	tasks        *service.TaskService
	admin        *service.AdminService
	history      *service.HistoryService
	achievements *service.AchievementService
	challenges   *service.ChallengeService
	registry     *game.Registry
	metrics      *metrics.Metrics
	origins      []string
	streamTick   time.Duration
	now          func() time.Time
}

// New creates a Handler.
func New(d *Deps) *Handler {
	tick := d.StreamTick
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &Handler{
		accounts:     d.Accounts,
		slots:        d.Slots,
		roulette:     d.Roulette,
		mines:        d.Mines,
		crash:        d.Crash,
		tasks:        d.Tasks,
		admin:        d.Admin,
		history:      d.History,
		achievements: d.Achievements,
		challenges:   d.Challenges,
		registry:     d.Registry,
		metrics:      d.Metrics,
		origins:      d.AllowedOrigins,
		streamTick:   tick,
		now:          time.Now,
	}
}

// NewRouter builds the API router.
func NewRouter(d *Deps) http.Handler {
	h := New(d)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Timing(d.Metrics))
	r.Use(Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(d.Sessions, d.Accounts))

		r.Get("/me", h.Me)
		r.Get("/history", h.History)
		r.Get("/achievements", h.Achievements)

		r.Route("/rewards/daily", func(r chi.Router) {
			r.Get("/", h.DailyStatus)
			r.With(RateLimit(d.Limiter, groupRewards)).Post("/", h.ClaimDaily)
		})

		r.Route("/daily-challenges", func(r chi.Router) {
			r.Get("/", h.DailyChallenges)
			r.With(RateLimit(d.Limiter, groupRewards)).Post("/", h.ChallengeAction)
		})

		r.Route("/games", func(r chi.Router) {
			r.Get("/", h.Games)
			r.Group(func(r chi.Router) {
				r.Use(RateLimit(d.Limiter, groupGames))

				r.Post("/slots/spin", h.SlotsSpin)
				r.Post("/roulette/spin", h.RouletteSpin)

				r.Post("/landmines/start", h.MinesStart)
				r.Post("/landmines/reveal", h.MinesReveal)
				r.Post("/landmines/cashout", h.MinesCashOut)

				r.Post("/crash/start", h.CrashStart)
				r.Post("/crash/cashout", h.CrashCashOut)
				r.Post("/crash/resolve", h.CrashResolve)
			})
			r.Get("/landmines/{sessionId}", h.MinesGet)
			r.Get("/crash/stream", h.CrashStream)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/list", h.TaskList)
			r.Get("/status", h.TaskStatus)
			r.With(RateLimit(d.Limiter, groupRewards)).Post("/start", h.TaskStart)
			r.With(RateLimit(d.Limiter, groupRewards)).Post("/complete", h.TaskComplete)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Post("/add-chips", h.AddChips)
			r.Get("/tasks/config", h.TaskConfig)
			r.Put("/tasks/config", h.UpdateTaskConfig)
		})
	})

	return r
}
