// Package main demonstrates a full sessionkit integration against a local
// stub backend (no external services required).
//
// It starts two HTTP servers:
//
//	:8000 — a stub backend that mints HS256 JWTs and exposes the four
//	        endpoints the coordinator talks to:
//
//	        POST /auth/login    — JSON {"username":"...", "password":"..."}
//	        POST /auth/refresh  — mints a fresh token for the bearer
//	        GET  /users/me      — returns the caller's current role
//	        GET  /tasks         — a protected business route
//
//	        plus POST /admin/promote, which flips every user's role to
//	        "supervisor" so a role change can be observed live.
//
//	:9090 — /metrics, the coordinator's counters in Prometheus format.
//
// The demo logs in, calls the protected route, then leaves the background
// notifier polling. Flip the role and watch the role-change handler fire:
//
//	go run ./cmd/sessionkit-demo
//
//	curl -X POST localhost:8000/admin/promote
//	# within the notifier interval the demo logs:
//	#   role change detected old=employee new=supervisor
//
// Configuration is read from the environment (a .env file is honored):
//
//	DEMO_BACKEND_ADDR   backend listen address  (default :8000)
//	DEMO_METRICS_ADDR   metrics listen address  (default :9090)
//	DEMO_REDIS_ADDR     if set, persist sessions in Redis at this address;
//	                    the value "miniredis" starts an embedded instance
//	DEMO_NOTIFIER_SECS  background poll interval (default 10)
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	sessionkit "github.com/mindwell-app/sessionkit"
	promexport "github.com/mindwell-app/sessionkit/metrics/export/prometheus"
	"github.com/mindwell-app/sessionkit/store"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	backendAddr := envOr("DEMO_BACKEND_ADDR", ":8000")
	metricsAddr := envOr("DEMO_METRICS_ADDR", ":9090")

	// ---------- stub backend ----------
	backend := newStubBackend([]byte("demo-signing-key"))
	go func() {
		log.WithField("addr", backendAddr).Info("stub backend listening")
		if err := http.ListenAndServe(backendAddr, backend.router()); err != nil {
			log.WithError(err).Fatal("backend server failed")
		}
	}()

	// ---------- persistence ----------
	st, cleanup, err := buildStore(log)
	if err != nil {
		log.WithError(err).Fatal("store init failed")
	}
	defer cleanup()

	// ---------- coordinator ----------
	cfg := sessionkit.DefaultConfig()
	cfg.HTTP.BaseURL = "http://localhost" + backendAddr
	cfg.Notifier.Interval = time.Duration(envInt("DEMO_NOTIFIER_SECS", 10)) * time.Second

	coordinator, err := sessionkit.New().
		WithConfig(cfg).
		WithStore(st).
		WithLogger(log).
		WithEventSink(sessionkit.NewJSONWriterSink(os.Stdout)).
		WithRoleChangeHandler(func(oldRole, newRole string) {
			log.WithField("old", oldRole).WithField("new", newRole).
				Warn("role change detected")
		}).
		Build()
	if err != nil {
		log.WithError(err).Fatal("coordinator build failed")
	}
	defer coordinator.Close()

	// ---------- metrics ----------
	go func() {
		mux := chi.NewRouter()
		mux.Handle("/metrics", promexport.Handler(coordinator))
		log.WithField("addr", metricsAddr).Info("metrics listening")
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.WithError(err).Fatal("metrics server failed")
		}
	}()

	ctx := context.Background()

	// Give the backend listener a moment to bind.
	time.Sleep(200 * time.Millisecond)

	// ---------- walkthrough ----------
	if session, err := coordinator.Restore(ctx); err != nil {
		log.WithError(err).Fatal("restore failed")
	} else if session != nil {
		log.WithField("role", session.Role).Info("session restored from store")
	}

	if coordinator.State() != sessionkit.StateAuthenticated {
		session, err := coordinator.Login(ctx, "alice", "correct-horse")
		if err != nil {
			log.WithError(err).Fatal("login failed")
		}
		log.WithField("subject", session.Identity.Subject).
			WithField("role", session.Role).Info("logged in")
	}

	var tasks struct {
		Tasks []string `json:"tasks"`
	}
	if err := coordinator.Client().Get(ctx, "/tasks", &tasks); err != nil {
		log.WithError(err).Fatal("protected request failed")
	}
	log.WithField("count", len(tasks.Tasks)).Info("fetched tasks")

	coordinator.Start()
	log.Info("background notifier running; POST /admin/promote to trigger a role change")

	select {}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func buildStore(log *logrus.Logger) (store.Store, func(), error) {
	addr := os.Getenv("DEMO_REDIS_ADDR")
	switch addr {
	case "":
		return store.NewMemory(), func() {}, nil
	case "miniredis":
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, err
		}
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		log.WithField("addr", mr.Addr()).Info("embedded redis store")
		return store.NewRedis(client, "sessionkit-demo"), mr.Close, nil
	default:
		client := goredis.NewClient(&goredis.Options{Addr: addr})
		log.WithField("addr", addr).Info("redis store")
		return store.NewRedis(client, "sessionkit-demo"), func() { _ = client.Close() }, nil
	}
}

/* ============================================================
   Stub backend
   ============================================================ */

type stubBackend struct {
	signingKey []byte

	mu   sync.Mutex
	role string
}

func newStubBackend(signingKey []byte) *stubBackend {
	return &stubBackend{signingKey: signingKey, role: "employee"}
}

func (b *stubBackend) router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Post("/auth/login", b.handleLogin)
	r.Post("/auth/refresh", b.handleRefresh)
	r.Get("/users/me", b.handleMe)
	r.Get("/tasks", b.handleTasks)
	r.Post("/admin/promote", b.handlePromote)
	return r
}

func (b *stubBackend) currentRole() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.role
}

func (b *stubBackend) mint(subject string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": b.currentRole(),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(30 * time.Minute).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.signingKey)
}

// subjectFromAuth validates the bearer token and returns its subject.
func (b *stubBackend) subjectFromAuth(r *http.Request) (string, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		return "", false
	}
	parsed, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return b.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", false
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil {
		return "", false
	}
	return subject, true
}

func (b *stubBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "malformed request"})
		return
	}
	if req.Password != "correct-horse" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid credentials"})
		return
	}

	token, err := b.mint(req.Username)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "token mint failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

func (b *stubBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	subject, ok := b.subjectFromAuth(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid token"})
		return
	}
	token, err := b.mint(subject)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "token mint failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

func (b *stubBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	subject, ok := b.subjectFromAuth(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"username": subject,
		"role":     b.currentRole(),
	})
}

func (b *stubBackend) handleTasks(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.subjectFromAuth(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"tasks": {"hydrate", "stretch", "walk"},
	})
}

func (b *stubBackend) handlePromote(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.role = "supervisor"
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"role": "supervisor"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
