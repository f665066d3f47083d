package mqttpacket

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-io/mqttpacket/packet"
	log "github.com/sirupsen/logrus"
)

func TestLoadConfig(t *testing.T) {
	saved := *CONFIG
	level := log.GetLevel()
	t.Cleanup(func() {
		*CONFIG = saved
		log.SetLevel(level)
	})

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
http:
  url: 127.0.0.1:18080
log:
  level: debug
bufferEstimate: 4000
filters:
  - sensors/+/temp
  - "#"
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	if err := LoadConfig(path); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if CONFIG.HTTP.URL != "127.0.0.1:18080" {
		t.Errorf("HTTP.URL = %q", CONFIG.HTTP.URL)
	}
	if CONFIG.BufferEstimate != 4000 || packet.BufferSize(CONFIG.BufferEstimate) != 4096 {
		t.Errorf("BufferEstimate = %d", CONFIG.BufferEstimate)
	}
	if len(CONFIG.Filters) != 2 || CONFIG.Filters[1] != "#" {
		t.Errorf("Filters = %v", CONFIG.Filters)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("log level = %v, want debug", log.GetLevel())
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	saved := *CONFIG
	t.Cleanup(func() { *CONFIG = saved })

	dir := t.TempDir()
	if err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadConfig() of a missing file should fail")
	}

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"语法错误", "http: [", "parse config"},
		{"日志级别", "log:\n  level: verbose\n", "unknown log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			err := LoadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadConfig() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestNewConnectOptions(t *testing.T) {
	opts := NewConnectOptions()
	if !strings.HasPrefix(opts.ClientID, "mqttpacket-") || opts.KeepAlive != 60 || !opts.CleanSession || opts.Version != packet.VERSION311 {
		t.Errorf("NewConnectOptions() = %+v", opts)
	}
	if opts.Username != nil || opts.Password != nil || opts.Will != nil {
		t.Errorf("NewConnectOptions() carries credentials or will: %+v", opts)
	}

	opts = NewConnectOptions(ClientID("id"), KeepAlive(0), CleanSession(false), Version(packet.VERSION310), Credentials("", nil))
	if opts.ClientID != "id" || opts.KeepAlive != 0 || opts.CleanSession || opts.Version != packet.VERSION310 {
		t.Errorf("NewConnectOptions() = %+v", opts)
	}
	// 空用户名也是存在的用户名
	if opts.Username == nil || *opts.Username != "" {
		t.Errorf("Username = %v, want empty string", opts.Username)
	}
}

func TestVersion_Unsupported(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Version(\"5.0\") should panic")
		}
	}()
	NewConnectOptions(Version("5.0"))
}
