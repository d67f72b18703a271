package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolateEnv points XDG dirs at temp dirs and clears GX_* overrides.
func isolateEnv(t *testing.T) string {
	t.Helper()
	ResetGlobalConfigCache()
	t.Cleanup(ResetGlobalConfigCache)

	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))
	for _, k := range []string{EnvAPIBaseURL, EnvAPIToken, EnvDBPath, EnvNeo4jURI, EnvNeo4jUser, EnvNeo4jPassword} {
		t.Setenv(k, "")
	}
	return tmpDir
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	configDir := filepath.Join(dir, GlobalConfigDir)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, GlobalConfigFile), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	path := GlobalConfigPath()
	want := "/custom/config/gx/config.yml"
	if path != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", path, want)
	}

	// Test with empty XDG_CONFIG_HOME (should use ~/.config)
	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	path = GlobalConfigPath()
	want = filepath.Join(home, ".config", "gx", "config.yml")
	if path != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", path, want)
	}
}

func TestLoadGlobalConfig_NotFound(t *testing.T) {
	tmpDir := isolateEnv(t)

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}

	if cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Errorf("APIBaseURL = %q, want default", cfg.APIBaseURL)
	}
	if cfg.RateLimit != DefaultRateLimit || cfg.Timeout != DefaultTimeout {
		t.Errorf("RateLimit/Timeout = %v/%v, want defaults", cfg.RateLimit, cfg.Timeout)
	}
	wantDB := filepath.Join(tmpDir, "data", "gx", "gx.db")
	if cfg.DBPath != wantDB {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, wantDB)
	}
	if cfg.Style.MinSize != 30 || cfg.Style.MaxSize != 90 || cfg.Style.SizeScale != 12 {
		t.Errorf("Style sizes = %+v, want 30/90/12", cfg.Style)
	}
}

func TestLoadGlobalConfig_Valid(t *testing.T) {
	tmpDir := isolateEnv(t)
	writeConfig(t, tmpDir, `
api_base_url: https://graph.example.org
api_token: secret
rate_limit: 2.5
timeout: 5s
db_path: ~/gx/cache.db
neo4j:
  uri: neo4j://localhost:7687
  username: neo4j
  database: volunteers
style:
  min_size: 20
  type_colors:
    Volunteer: "#000000"
    donor: "#123456"
`)

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}

	if cfg.APIBaseURL != "https://graph.example.org" || cfg.APIToken != "secret" {
		t.Errorf("API settings = %q %q", cfg.APIBaseURL, cfg.APIToken)
	}
	if cfg.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", cfg.RateLimit)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}

	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "gx/cache.db"); cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
	if cfg.Neo4j.Database != "volunteers" || cfg.Neo4j.Username != "neo4j" {
		t.Errorf("Neo4j = %+v", cfg.Neo4j)
	}

	if cfg.Style.MinSize != 20 || cfg.Style.MaxSize != 90 {
		t.Errorf("Style sizes = %v/%v, want 20/90", cfg.Style.MinSize, cfg.Style.MaxSize)
	}
	if got := cfg.Style.ColorFor("volunteer"); got != "#000000" {
		t.Errorf("volunteer colour = %q, want override", got)
	}
	if got := cfg.Style.ColorFor("donor"); got != "#123456" {
		t.Errorf("donor colour = %q", got)
	}
	if got := cfg.Style.ColorFor("skill"); got != "#8DCC93" {
		t.Errorf("skill colour = %q, want default kept", got)
	}
}

func TestLoadGlobalConfig_Cached(t *testing.T) {
	tmpDir := isolateEnv(t)
	writeConfig(t, tmpDir, "api_token: first\n")

	first, err := LoadGlobalConfig()
	if err != nil {
		t.Fatal(err)
	}
	writeConfig(t, tmpDir, "api_token: second\n")
	second, _ := LoadGlobalConfig()
	if first != second || second.APIToken != "first" {
		t.Error("second load should hit the cache")
	}

	ResetGlobalConfigCache()
	third, _ := LoadGlobalConfig()
	if third.APIToken != "second" {
		t.Errorf("after reset APIToken = %q, want second", third.APIToken)
	}
}

func TestLoadGlobalConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed yaml", "api_base_url: [unclosed"},
		{"bad url", "api_base_url: not a url"},
		{"negative rate", "rate_limit: -1"},
		{"inverted sizes", "style:\n  min_size: 100\n  max_size: 50\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := isolateEnv(t)
			writeConfig(t, tmpDir, tt.body)

			if _, err := LoadGlobalConfig(); err == nil {
				t.Error("LoadGlobalConfig() should return error")
			}
		})
	}
}

func TestLoadGlobalConfig_EnvOverrides(t *testing.T) {
	tmpDir := isolateEnv(t)
	writeConfig(t, tmpDir, "api_token: from-file\nneo4j:\n  uri: neo4j://file\n")

	t.Setenv(EnvAPIToken, "from-env")
	t.Setenv(EnvNeo4jURI, "neo4j://env")
	t.Setenv(EnvDBPath, "/tmp/gx-env.db")

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIToken != "from-env" || cfg.Neo4j.URI != "neo4j://env" || cfg.DBPath != "/tmp/gx-env.db" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestGetConfigValue(t *testing.T) {
	t.Setenv("TEST_CONFIG_KEY", "from-env")
	if got := GetConfigValue("TEST_CONFIG_KEY", "from-config"); got != "from-env" {
		t.Errorf("GetConfigValue() = %q, want from-env", got)
	}

	t.Setenv("TEST_CONFIG_KEY", "")
	if got := GetConfigValue("TEST_CONFIG_KEY", "from-config"); got != "from-config" {
		t.Errorf("GetConfigValue() = %q, want from-config", got)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("GX_TEST_DOTENV=loaded\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GX_TEST_DOTENV", "")
	os.Unsetenv("GX_TEST_DOTENV")

	if err := LoadEnv(envFile); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("GX_TEST_DOTENV"); got != "loaded" {
		t.Errorf("GX_TEST_DOTENV = %q, want loaded", got)
	}

	if err := LoadEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing .env should not be an error, got %v", err)
	}
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/data/gx.db", filepath.Join(home, "data/gx.db")},
		{"~", home},
		{"/abs/path", "/abs/path"},
		{"relative", "relative"},
		{"~user/x", "~user/x"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ExpandTilde(tt.in); got != tt.want {
			t.Errorf("ExpandTilde(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStyle(t *testing.T) {
	s := DefaultStyle()

	if got := s.ColorFor("Volunteer"); got != "#F16667" {
		t.Errorf("ColorFor(Volunteer) = %q", got)
	}
	if got := s.ColorFor("unknown"); got != DefaultColor {
		t.Errorf("ColorFor(unknown) = %q, want %q", got, DefaultColor)
	}

	scale := s.Scale()
	if scale.Min != 30 || scale.Max != 90 || scale.Factor != 12 {
		t.Errorf("Scale() = %+v", scale)
	}

	colors := s.Colors()
	colors["volunteer"] = "#FFF"
	if s.ColorFor("volunteer") == "#FFF" {
		t.Error("Colors() must return a copy")
	}
}
