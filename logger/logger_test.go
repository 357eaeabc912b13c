package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	cfg := &Config{
		Level:  "invalid-level",
		Format: "json",
		Output: "stdout",
	}
	l := New(cfg, "test")
	if l == nil {
		t.Fatal("expected logger to be created even with invalid level")
	}
}

func TestNewFromEnv(t *testing.T) {
	os.Setenv("LOG_LEVEL", "DEBUG")
	os.Setenv("LOG_FORMAT", "json")
	defer os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("LOG_FORMAT")

	l := NewFromEnv("env-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if got := l.GetLogger().GetLevel().String(); got != "debug" {
		t.Errorf("expected debug level, got %s", got)
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "info", Format: "json"}, "fetchguard")

	l.WithComponent("proxy").Warn("proxy failed", Fields(FieldProxy, "http://p1:8080", FieldFailures, 3))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry[FieldComponent] != "proxy" {
		t.Errorf("expected component=proxy, got %v", entry[FieldComponent])
	}
	if entry[FieldProxy] != "http://p1:8080" {
		t.Errorf("expected proxy field, got %v", entry[FieldProxy])
	}
	if entry["level"] != "warn" {
		t.Errorf("expected warn level, got %v", entry["level"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "warn", Format: "json"}, "fetchguard")

	l.Info("hidden")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info/debug to be filtered, got %q", buf.String())
	}

	l.Error("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected error line, got %q", buf.String())
	}
}

func TestConsoleFormatWritesTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "info", Format: "console", NoColor: true}, "fetchguard")
	l.Info("cache hit")

	out := buf.String()
	if !strings.Contains(out, "[FET][INF]") {
		t.Errorf("expected service and level tag, got %q", out)
	}
	if !strings.Contains(out, "cache hit") {
		t.Errorf("expected message, got %q", out)
	}
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "info", Format: "json"}, "svc")

	l.WithFields(map[string]interface{}{"key": "value"}).WithError(fmt.Errorf("boom")).Info("msg")

	if !strings.Contains(buf.String(), `"key":"value"`) {
		t.Errorf("expected key field, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"error":"boom"`) {
		t.Errorf("expected error field, got %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	// must not panic
	Nop().Error("discarded", Fields("a", 1))
}

func TestInitAndGlobal(t *testing.T) {
	Init(&Config{Level: "info", Format: "json", Output: "stdout"})
	if GetGlobalLogger() == nil {
		t.Fatal("expected global logger to be set after Init")
	}

	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to set the global logger")
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected output 'stdout', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json"}, false},
		{"valid console", Config{Level: "debug", Format: "console"}, false},
		{"invalid level", Config{Level: "bad", Format: "json"}, true},
		{"invalid format", Config{Level: "info", Format: "xml"}, true},
		{"empty level", Config{Format: "json"}, true},
		{"component level", Config{Level: "info", Format: "json", Components: map[string]string{ComponentProxy: "debug"}}, false},
		{"bad component level", Config{Level: "info", Format: "json", Components: map[string]string{ComponentProxy: "chatty"}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRegisterAndGet(t *testing.T) {
	l := NewDefault("custom-component")
	Register("my-component", l)

	if got := Get("my-component"); got != l {
		t.Error("expected Get to return the registered logger")
	}
	if got := Get("unregistered-component"); got == nil {
		t.Fatal("expected non-nil logger for unregistered component")
	}
}

func TestOrGet(t *testing.T) {
	l := Nop()
	if OrGet(l, "cache") != l {
		t.Error("expected injected logger to win")
	}
	if OrGet(nil, "cache") == nil {
		t.Error("expected registry fallback")
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name     string
		input    []interface{}
		expected map[string]interface{}
	}{
		{
			"key-value pairs",
			[]interface{}{FieldAttempt, 2, FieldDelayMs, 400},
			map[string]interface{}{FieldAttempt: 2, FieldDelayMs: 400},
		},
		{
			"odd number of args",
			[]interface{}{"op", "save", "trailing"},
			map[string]interface{}{"op": "save"},
		},
		{
			"non-string key skipped",
			[]interface{}{123, "value", "key", "val"},
			map[string]interface{}{"key": "val"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Fields(tc.input...)
			if len(result) != len(tc.expected) {
				t.Errorf("expected %d fields, got %d", len(tc.expected), len(result))
			}
			for k, v := range tc.expected {
				if result[k] != v {
					t.Errorf("Fields[%q] = %v, expected %v", k, result[k], v)
				}
			}
		})
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	fields := ErrorFields("cache.set", fmt.Errorf("disk full"))
	if fields[FieldOperation] != "cache.set" || fields[FieldError] != "disk full" {
		t.Errorf("unexpected error fields %v", fields)
	}

	fields = DurationFields("fetch", 150*time.Millisecond)
	if fields[FieldDuration] != int64(150) {
		t.Errorf("expected duration 150, got %v", fields[FieldDuration])
	}
}

func resetRegistry(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		registry.mu.Lock()
		defer registry.mu.Unlock()
		registry.loggers = make(map[string]*Logger)
	})
}

func TestRegisterComponents_Levels(t *testing.T) {
	resetRegistry(t)
	var buf bytes.Buffer
	base := NewWithWriter(&buf, &Config{Level: "info", Format: "json"}, "fetchguard")

	RegisterComponents(base, map[string]string{ComponentProxy: "debug", ComponentCache: "error", "worker": "warn"})

	Get(ComponentProxy).Debug("proxy debug")
	Get(ComponentCache).Warn("cache warn")
	Get(ComponentFetch).Debug("fetch debug")
	Get("worker").Warn("worker warn")

	var components []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		components = append(components, fmt.Sprint(entry[FieldComponent]))
	}
	want := []string{ComponentProxy, "worker"}
	if strings.Join(components, ",") != strings.Join(want, ",") {
		t.Errorf("expected lines from %v, got %v", want, components)
	}
}

func TestSub(t *testing.T) {
	resetRegistry(t)
	var buf bytes.Buffer
	injected := NewWithWriter(&buf, &Config{Level: "info", Format: "json"}, "fetchguard")

	injected.Info("before")
	Sub(injected, ComponentRetry).Info("derived")
	if !strings.Contains(buf.String(), `"component":"retry"`) {
		t.Errorf("expected the injected logger tagged retry, got %s", buf.String())
	}

	registered := Nop()
	Register(ComponentRetry, registered)
	if Sub(injected, ComponentRetry) != registered {
		t.Error("expected the registered component logger to win")
	}
	if Sub(nil, ComponentBreaker) == nil {
		t.Error("expected a fallback logger")
	}
}
