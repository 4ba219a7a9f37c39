package config

import (
	"os"
	"testing"
)

const sampleConfig = `
llm:
  provider: openai
  base_url: https://api.example.com
  api_key: dummy
  model: gpt-4o
server:
  host: 0.0.0.0
  port: "8080"
google:
  credentials_file: testdata/credentials.json
  token_file: testdata/token.json
news:
  api_key: news-key
  country: us
mcp_servers:
  - type: stdio
    command: ./mock
    args: ["--flag"]
    env:
      FOO: bar
`

// TestLoad verifies that Load correctly unmarshals all sections.
func TestLoad(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString(sampleConfig); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()

	t.Setenv("CONFIG_PATH", tmp.Name())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Fatalf("unexpected model: %s", cfg.LLM.Model)
	}
	if cfg.Google.CredentialsFile != "testdata/credentials.json" {
		t.Fatalf("unexpected credentials file: %s", cfg.Google.CredentialsFile)
	}
	if cfg.News.APIKey != "news-key" {
		t.Fatalf("unexpected news api key: %s", cfg.News.APIKey)
	}
	if len(cfg.MCPServers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(cfg.MCPServers))
	}
	s := cfg.MCPServers[0]
	if s.Type != ClientTypeStdio {
		t.Fatalf("expected type stdio, got %s", s.Type)
	}
	if s.Command != "./mock" {
		t.Fatalf("unexpected command: %s", s.Command)
	}
	if len(s.Args) != 1 || s.Args[0] != "--flag" {
		t.Fatalf("unexpected args: %v", s.Args)
	}
	if v := s.Env["foo"]; v != "bar" {
		t.Fatalf("env not parsed: %v", s.Env)
	}
}

// TestLoad_Defaults verifies defaults for sections omitted from the file.
func TestLoad_Defaults(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if _, err := tmp.WriteString("llm:\n  model: gpt-4o\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	tmp.Close()

	t.Setenv("CONFIG_PATH", tmp.Name())
	t.Setenv("NEWS_API_KEY", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Weather.GeocodingURL != "https://geocoding-api.open-meteo.com/v1/search" {
		t.Fatalf("unexpected geocoding url: %s", cfg.Weather.GeocodingURL)
	}
	if cfg.Weather.ForecastURL != "https://api.open-meteo.com/v1/forecast" {
		t.Fatalf("unexpected forecast url: %s", cfg.Weather.ForecastURL)
	}
	if cfg.News.Country != "us" || cfg.News.MaxArticles != 5 {
		t.Fatalf("news defaults not applied: %+v", cfg.News)
	}
	if cfg.News.APIKey != "from-env" {
		t.Fatalf("news api key not read from environment: %q", cfg.News.APIKey)
	}
	if cfg.Google.TokenFile != "token.json" {
		t.Fatalf("unexpected token file: %s", cfg.Google.TokenFile)
	}
}
