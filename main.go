package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"stationgate/internal/admin"
	"stationgate/internal/auth"
	"stationgate/internal/chat"
	"stationgate/internal/config"
	"stationgate/internal/db"
	"stationgate/internal/events"
	mw "stationgate/internal/middleware"
	"stationgate/internal/policy"
)

func main() {
	configPath := flag.String("config", "", "path to stationgate.cfg")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = getEnv("STATIONGATE_CONFIG", "stationgate.cfg")
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal("FATAL: ", err)
	}

	conn, validation, err := db.Connect(db.Settings{
		Engine:   cfg.Database.Engine,
		Path:     cfg.Database.Path,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Schema:   cfg.Database.Schema,
	})
	if err != nil {
		log.Fatal("FATAL: ", err)
	}
	defer conn.Close()
	log.Printf("Database ready: schema version %d", validation.CurrentVersion)

	avatars := chat.NewAvatarService(conn)
	rooms := chat.NewRoomService(avatars, conn)
	messages := chat.NewPersistentMessageService(conn)

	engine := policy.NewEngine(policy.Config{
		Enabled:           cfg.Policy.Enabled,
		ShadowMode:        cfg.Policy.ShadowMode,
		SoftWarnThreshold: cfg.Policy.SoftWarnThreshold,
		ThrottleThreshold: cfg.Policy.ThrottleThreshold,
		BlockThreshold:    cfg.Policy.BlockThreshold,
	})

	hub := events.NewHub(cfg.Server.AllowedOrigin)
	go hub.Run()

	gateway := chat.NewGateway(avatars, rooms, messages, engine, hub)
	if err := gateway.LoadRooms(cfg.Server.BaseAddress); err != nil {
		log.Fatal("FATAL: loading rooms: ", err)
	}

	authSvc := auth.New(cfg.Server.AdminSecret)
	adminHash, err := authSvc.HashPassword(cfg.Server.AdminPassword)
	if err != nil {
		log.Fatal("FATAL: hashing admin password: ", err)
	}

	h := admin.New(gateway, authSvc, hub, cfg.Server.AdminUser, adminHash)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.CleanPath)

	// Per-IP rate limiter for the login endpoint (10 req/min, burst 5).
	authLimiter := newIPRateLimiter(rate.Every(time.Minute/10), 5)

	r.With(authLimiter).Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(mw.Auth(authSvc))

		r.Get("/ws", h.EventStream)
		r.Get("/api/me", h.Me)
		r.Get("/api/health", h.Health)

		r.Get("/api/avatars", h.GetAvatar)
		r.Post("/api/avatars", h.CreateAvatar)
		r.Delete("/api/avatars", h.DestroyAvatar)
		r.Get("/api/avatars/online", h.OnlineAvatars)
		r.Post("/api/avatars/login", h.LoginAvatar)
		r.Post("/api/avatars/logout", h.LogoutAvatar)

		r.Post("/api/avatars/friends", h.AddFriend)
		r.Put("/api/avatars/friends", h.UpdateFriendComment)
		r.Delete("/api/avatars/friends", h.RemoveFriend)
		r.Post("/api/avatars/ignores", h.AddIgnore)
		r.Delete("/api/avatars/ignores", h.RemoveIgnore)

		r.Get("/api/rooms", h.RoomSummaries)
		r.Post("/api/rooms", h.CreateRoom)
		r.Get("/api/rooms/lookup", h.GetRoom)
		r.Delete("/api/rooms", h.DestroyRoom)
		r.Get("/api/rooms/joined", h.JoinedRooms)
		r.Post("/api/rooms/enter", h.EnterRoom)
		r.Post("/api/rooms/leave", h.LeaveRoom)

		r.Post("/api/rooms/administrators", h.AddAdministrator)
		r.Delete("/api/rooms/administrators", h.RemoveAdministrator)
		r.Post("/api/rooms/moderators", h.AddModerator)
		r.Delete("/api/rooms/moderators", h.RemoveModerator)
		r.Post("/api/rooms/bans", h.BanAvatar)
		r.Delete("/api/rooms/bans", h.UnbanAvatar)
		r.Post("/api/rooms/invites", h.InviteAvatar)
		r.Delete("/api/rooms/invites", h.UninviteAvatar)
		r.Post("/api/rooms/kick", h.KickAvatar)

		r.Post("/api/mail", h.SendMail)
		r.Get("/api/mail", h.MailHeaders)
		r.Get("/api/mail/{id}", h.FetchMail)
		r.Put("/api/mail/{id}/status", h.SetMailStatus)
		r.Put("/api/mail/status", h.BulkSetMailStatus)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddress, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("stationgate listening on http://%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error: ", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- Per-IP rate limiter ---

type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

func newIPRateLimiter(r rate.Limit, b int) func(http.Handler) http.Handler {
	rl := &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			// Strip port if present
			if h, _, err := net.SplitHostPort(ip); err == nil {
				ip = h
			}
			if !rl.get(ip).Allow() {
				http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *ipRateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters[ip]; ok {
		return l
	}
	l := rate.NewLimiter(rl.r, rl.b)
	rl.limiters[ip] = l
	return l
}
