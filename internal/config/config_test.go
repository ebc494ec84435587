package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// base is the smallest environment that validates: admin auth needs a key.
func base(extra map[string]string) map[string]string {
	vars := map[string]string{"API_KEYS": "secret"}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith(env(base(nil)))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Ingest.ChunkSize != 750 {
		t.Errorf("Ingest.ChunkSize = %d, want %d", cfg.Ingest.ChunkSize, 750)
	}
	if cfg.Ingest.ChunkConcurrency != 1 {
		t.Errorf("Ingest.ChunkConcurrency = %d, want %d", cfg.Ingest.ChunkConcurrency, 1)
	}
	if cfg.Ingest.MaxFileSize != 25<<20 {
		t.Errorf("Ingest.MaxFileSize = %d, want %d", cfg.Ingest.MaxFileSize, 25<<20)
	}
	if cfg.Audit.Timezone != "UTC" {
		t.Errorf("Audit.Timezone = %q, want %q", cfg.Audit.Timezone, "UTC")
	}
	if cfg.Audit.ExportDelimiter != "," {
		t.Errorf("Audit.ExportDelimiter = %q, want %q", cfg.Audit.ExportDelimiter, ",")
	}
}

func TestLoad_FromProcessEnvironment(t *testing.T) {
	t.Setenv("API_KEYS", "k1")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "MEMORY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Database.Driver != DriverMemory {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverMemory)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	cfg, err := LoadWith(env(base(map[string]string{
		"INGEST_CHUNK_SIZE":        "100",
		"INGEST_CHUNK_CONCURRENCY": "4",
		"LOG_LEVEL":                "debug",
		"AUDIT_TIMEZONE":           "America/Argentina/Buenos_Aires",
	})))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Ingest.ChunkSize != 100 {
		t.Errorf("Ingest.ChunkSize = %d, want %d", cfg.Ingest.ChunkSize, 100)
	}
	if cfg.Ingest.ChunkConcurrency != 4 {
		t.Errorf("Ingest.ChunkConcurrency = %d, want %d", cfg.Ingest.ChunkConcurrency, 4)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	loc, err := cfg.Audit.Location()
	if err != nil {
		t.Fatalf("Audit.Location() error = %v", err)
	}
	if loc.String() != "America/Argentina/Buenos_Aires" {
		t.Errorf("Audit.Location() = %q", loc.String())
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	cfg, err := LoadWith(env(base(map[string]string{
		"DB_DRIVER": "postgres",
		"DB_URL":    "postgres://localhost/alttest",
	})))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Database.URL != "postgres://localhost/alttest" {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, "postgres://localhost/alttest")
	}
}

func TestLoad_PostgresRequiresURL(t *testing.T) {
	_, err := LoadWith(env(base(map[string]string{"DB_DRIVER": "postgres"})))
	if err == nil {
		t.Fatal("LoadWith() expected error for missing DATABASE_URL")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error = %v, want mention of DATABASE_URL", err)
	}
}

func TestLoad_PostgresPoolLeavesRoomForIngestLock(t *testing.T) {
	pg := map[string]string{
		"DB_DRIVER":    "postgres",
		"DATABASE_URL": "postgres://localhost/roster",
		"DB_MIN_CONNS": "0",
	}

	tests := []struct {
		name        string
		maxConns    string
		concurrency string
		wantErr     bool
	}{
		{"single connection", "1", "1", true},
		{"lock plus one writer", "2", "1", false},
		{"parallel chunks need more", "3", "3", true},
		{"parallel chunks fit", "4", "3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vars := base(pg)
			vars["DB_MAX_CONNS"] = tt.maxConns
			vars["INGEST_CHUNK_CONCURRENCY"] = tt.concurrency

			_, err := LoadWith(env(vars))
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadWith(max=%s, concurrency=%s) error = %v, wantErr %v", tt.maxConns, tt.concurrency, err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "DB_MAX_CONNS") {
				t.Errorf("error = %v, want mention of DB_MAX_CONNS", err)
			}
		})
	}
}

func TestLoad_Duration(t *testing.T) {
	cfg, err := LoadWith(env(base(map[string]string{
		"SERVER_READ_TIMEOUT": "45s",
		"INGEST_LOCK_WAIT":    "1m30s",
	})))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Ingest.LockWait != 90*time.Second {
		t.Errorf("Ingest.LockWait = %v, want %v", cfg.Ingest.LockWait, 90*time.Second)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	cfg, err := LoadWith(env(base(map[string]string{
		"TRUSTED_PROXIES":      "10.0.0.0/8, 172.16.0.0/12 , 192.168.0.0/16",
		"CORS_ALLOWED_ORIGINS": "https://gate.example.org,,",
	})))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	want := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	if !reflect.DeepEqual(cfg.Security.TrustedProxies, want) {
		t.Errorf("TrustedProxies = %v, want %v", cfg.Security.TrustedProxies, want)
	}
	if len(cfg.Security.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v, want one origin", cfg.Security.AllowedOrigins)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"bad integer", map[string]string{"SERVER_PORT": "eighty"}},
		{"bad duration", map[string]string{"INGEST_TIMEOUT": "soon"}},
		{"bad bool", map[string]string{"RATE_LIMIT_ENABLED": "maybe"}},
		{"port out of range", map[string]string{"SERVER_PORT": "70000"}},
		{"zero chunk size", map[string]string{"INGEST_CHUNK_SIZE": "0"}},
		{"unknown driver", map[string]string{"DB_DRIVER": "oracle"}},
		{"unknown timezone", map[string]string{"AUDIT_TIMEZONE": "Mars/Olympus"}},
		{"long delimiter", map[string]string{"AUDIT_EXPORT_DELIMITER": ";;"}},
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"auth without keys", map[string]string{"API_KEYS": ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadWith(env(base(tt.vars))); err == nil {
				t.Errorf("LoadWith(%v) expected error", tt.vars)
			}
		})
	}
}

func TestLoad_AuthDisabledWithoutKeys(t *testing.T) {
	_, err := LoadWith(env(map[string]string{"REQUIRE_API_KEY": "false"}))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}
}

func TestLoadStruct_Required(t *testing.T) {
	var s struct {
		Token string `env:"TOKEN" required:"true"`
	}

	err := loadStruct(reflect.ValueOf(&s).Elem(), env(nil))
	if err == nil || !strings.Contains(err.Error(), "TOKEN") {
		t.Fatalf("loadStruct() error = %v, want missing TOKEN", err)
	}

	if err := loadStruct(reflect.ValueOf(&s).Elem(), env(map[string]string{"TOKEN": "x"})); err != nil {
		t.Fatalf("loadStruct() error = %v", err)
	}
	if s.Token != "x" {
		t.Errorf("Token = %q, want %q", s.Token, "x")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg, err := LoadWith(env(base(nil)))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}
	cfg.Server.Port = 0
	cfg.Ingest.ChunkSize = 0
	cfg.Logging.Format = "xml"

	err = cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"SERVER_PORT", "INGEST_CHUNK_SIZE", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %s: %v", want, err)
		}
	}
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg, err := LoadWith(env(base(map[string]string{
		"DB_DRIVER":    "postgres",
		"DATABASE_URL": "postgres://admin:hunter2@db/roster",
	})))
	if err != nil {
		t.Fatalf("LoadWith() error = %v", err)
	}

	s := cfg.String()
	if strings.Contains(s, "hunter2") || strings.Contains(s, "secret") {
		t.Errorf("String() leaks secrets: %s", s)
	}
	if !strings.Contains(s, "[MASKED]") {
		t.Errorf("String() = %s, want masked fields", s)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"", 9000, ":9000"},
		{"127.0.0.1", 1, "127.0.0.1:1"},
	}

	for _, tt := range tests {
		c := ServerConfig{Host: tt.host, Port: tt.port}
		if got := c.Addr(); got != tt.want {
			t.Errorf("Addr(%q, %d) = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}
