package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Digital-Creators-Team/prize-wheel-module/config"
	"github.com/rs/zerolog"
)

func TestRegisterSwaggerServesRoute(t *testing.T) {
	app := New(Options{Config: &config.Config{}, Logger: zerolog.Nop()})
	defer app.GetFeedService().Stop()

	var updatedHost string
	app.RegisterSwagger(SwaggerInfo{
		Title:   "Prize Wheel API",
		Version: "1.0",
	}, func(host string) {
		updatedHost = host
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	req.Host = "wheel.example.com"
	app.Router().ServeHTTP(w, req)

	if w.Code == http.StatusNotFound {
		t.Errorf("expected the swagger route to be registered, got 404")
	}
	if updatedHost != "wheel.example.com" {
		t.Errorf("expected host from the request, got %q", updatedHost)
	}
}

func TestRegisterSwaggerPrefersForwardedHost(t *testing.T) {
	app := New(Options{Config: &config.Config{}, Logger: zerolog.Nop()})
	defer app.GetFeedService().Stop()

	var updatedHost string
	app.RegisterSwagger(SwaggerInfo{Title: "Prize Wheel API"}, func(host string) {
		updatedHost = host
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	req.Host = "internal:8080"
	req.Header.Set("X-Forwarded-Host", "wheel.example.com")
	app.Router().ServeHTTP(w, req)

	if updatedHost != "wheel.example.com" {
		t.Errorf("expected the forwarded host, got %q", updatedHost)
	}
}
