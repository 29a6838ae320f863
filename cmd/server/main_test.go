package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cardkiosk/printbroker/internal/api"
	"github.com/cardkiosk/printbroker/internal/config"
	"github.com/cardkiosk/printbroker/internal/domain"
	"github.com/cardkiosk/printbroker/internal/middleware"
	"github.com/cardkiosk/printbroker/internal/notify"
	"github.com/cardkiosk/printbroker/internal/printqueue"
	"github.com/cardkiosk/printbroker/internal/session"
	"github.com/cardkiosk/printbroker/internal/station"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestProbeAddr(t *testing.T) {
	if got := probeAddr(":9090"); got != "localhost:9090" {
		t.Errorf("probeAddr(:9090) = %q", got)
	}
	if got := probeAddr("10.0.0.2:9090"); got != "10.0.0.2:9090" {
		t.Errorf("probeAddr kept host = %q", got)
	}
}

func TestAllowedOrigins(t *testing.T) {
	dev := &config.Config{}
	if got := allowedOrigins(dev); len(got) != 1 || got[0] != "*" {
		t.Errorf("dev origins = %v", got)
	}
	prod := &config.Config{FrontendURL: "https://kiosk.example.com"}
	if got := allowedOrigins(prod); len(got) != 1 || got[0] != "https://kiosk.example.com" {
		t.Errorf("prod origins = %v", got)
	}
}

type stubGenerator struct{}

func (stubGenerator) GenerateCard(ctx context.Context, keywords []string) (*domain.CardRecord, error) {
	return &domain.CardRecord{Name: "A", Class: "B", Skill: "C", Description: "D",
		Stats: map[string]int{"attack": 1, "defense": 1, "magic": 1, "agility": 1, "luck": 1}}, nil
}

func (stubGenerator) GenerateQuestions(ctx context.Context) (*domain.QuestionSet, error) {
	return &domain.QuestionSet{SessionID: "s", Questions: []domain.Question{{ID: 1, Text: "q"}}}, nil
}

func testRouter(cfg *config.Config) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := notify.NewHub(logger)
	queue := printqueue.New(printqueue.Config{JobTTL: time.Minute, ClaimTTL: time.Minute}, hub, logger)
	h := api.NewHandler(api.Deps{
		Generator: stubGenerator{},
		Sessions:  session.NewStore(time.Minute, logger),
		Queue:     queue,
		Logger:    logger,
	})
	ws := station.NewHandler(hub, queue, station.NewRegistry(logger), "", true, logger)
	return newRouter(cfg, h, ws, middleware.NewRateLimiter(1))
}

// countLimited sends n card requests from one socket peer, each claiming a
// different forwarded address, and returns how many got 429.
func countLimited(router http.Handler, n int) int {
	limited := 0
	for i := 0; i < n; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/cards", strings.NewReader(`{"keywords":["fox"]}`))
		req.RemoteAddr = "203.0.113.5:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	return limited
}

func TestRateLimitIgnoresForwardedHeadersByDefault(t *testing.T) {
	router := testRouter(&config.Config{})

	if got := countLimited(router, 10); got != 9 {
		t.Fatalf("limited %d of 10 requests from one peer, want 9", got)
	}
}

func TestRateLimitHonorsForwardedHeadersBehindTrustedProxy(t *testing.T) {
	router := testRouter(&config.Config{TrustedProxy: true})

	if got := countLimited(router, 10); got != 0 {
		t.Fatalf("limited %d of 10 requests with distinct forwarded clients, want 0", got)
	}
}
