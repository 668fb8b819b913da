package telemetry

import (
	"context"
	"testing"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		endpoint string
		insecure bool
		ok       bool
	}{
		{"", "", false, false},
		{"   ", "", false, false},
		{"http://otel:4318", "otel:4318", true, true},
		{"https://otel.example.com/", "otel.example.com", false, true},
		{"collector:4318", "collector:4318", true, true},
		{"https://", "", false, false},
	}
	for _, tt := range tests {
		endpoint, insecure, ok := parseEndpoint(tt.raw)
		if endpoint != tt.endpoint || insecure != tt.insecure || ok != tt.ok {
			t.Errorf("parseEndpoint(%q) = %q,%v,%v want %q,%v,%v",
				tt.raw, endpoint, insecure, ok, tt.endpoint, tt.insecure, tt.ok)
		}
	}
}

func TestParseSampleRate(t *testing.T) {
	tests := map[string]float64{
		"":     0.1,
		"0.5":  0.5,
		"1":    1,
		"0":    0,
		"1.5":  0.1,
		"-0.2": 0.1,
		"abc":  0.1,
	}
	for raw, want := range tests {
		if got := parseSampleRate(raw); got != want {
			t.Errorf("parseSampleRate(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestInitDisabledWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	shutdown, err := Init(context.Background(), "cinemastream", "test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
