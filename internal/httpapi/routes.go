package httpapi

import (
	"net/http"
	"time"

	"github.com/ascendancy-esports/tournament-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func SetupRoutes(s *Server, origin string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "Accept"},
	}))
	r.Use(requestLogger(s.log))

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/", s.createUser)
			r.Get("/{userId}", s.getUser)
		})

		r.Route("/teams", func(r chi.Router) {
			r.Post("/", s.createTeam)
			r.Get("/", s.listTeams)
			r.Get("/{id}", s.getTeam)
			r.Get("/user/{userId}", s.getTeamByOwner)
			r.Delete("/{id}", s.deleteTeam)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Post("/", s.createMatch)
			r.Get("/", s.listMatches)
			r.Get("/{matchId}", s.getMatch)
			r.Patch("/{matchId}/status", s.updateMatchStatus)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", s.createOrder)
			r.Post("/verify", s.verifyPayment)
		})

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/create", s.createRoom)
			r.Get("/", s.listRooms)
			r.Post("/join", s.joinRoom)
			r.Get("/{roomCode}/status", s.roomStatus)
			r.Post("/{roomCode}/start", s.startPickBan)
			r.Post("/{roomCode}/ban", s.banMap)
			r.Post("/{roomCode}/side", s.selectSide)
			r.Delete("/{roomCode}", s.deleteRoom)
		})

		r.Get("/maps", s.listMaps)
	})

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(s.registry, s.log))
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Duration("took", time.Since(start)))
		})
	}
}
