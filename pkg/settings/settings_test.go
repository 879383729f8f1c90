package settings

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/newtron-network/devapi/pkg/util"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestSettings_Defaults(t *testing.T) {
	s := Defaults()

	if s.Server.Listen != DefaultListen {
		t.Errorf("Listen = %q, want %q", s.Server.Listen, DefaultListen)
	}
	if s.Device.SSHPort != 22 {
		t.Errorf("SSHPort = %d, want 22", s.Device.SSHPort)
	}
	if s.Device.TimeoutSeconds != DefaultTimeoutSeconds {
		t.Errorf("TimeoutSeconds = %d", s.Device.TimeoutSeconds)
	}
	if s.Server.DryRun {
		t.Error("DryRun should default to false")
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	s, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if s.Server.Listen != DefaultListen {
		t.Errorf("missing file should yield defaults, got %+v", s.Server)
	}
}

func TestLoadFrom_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devapi.yaml")
	data := `
server:
  listen: "127.0.0.1:9000"
  dry_run: true
device:
  host: 10.1.1.1
  username: admin
  password: secret
  timeout_seconds: 30
lock:
  redis_addr: "127.0.0.1:6379"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}

	if s.Server.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %q", s.Server.Listen)
	}
	if !s.Server.DryRun {
		t.Error("DryRun should be true")
	}
	if s.Device.Host != "10.1.1.1" || s.Device.Username != "admin" || s.Device.Password != "secret" {
		t.Errorf("Device = %+v", s.Device)
	}
	if s.Device.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d, want 30", s.Device.TimeoutSeconds)
	}
	// Unset keys keep their defaults
	if s.Device.SSHPort != DefaultSSHPort {
		t.Errorf("SSHPort = %d, want default %d", s.Device.SSHPort, DefaultSSHPort)
	}
	if s.Lock.TTLSeconds != DefaultLockTTLSeconds {
		t.Errorf("TTLSeconds = %d", s.Lock.TTLSeconds)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("LoadFrom() should fail on invalid YAML")
	}
}

func TestApplyEnv(t *testing.T) {
	s := Defaults()
	s.Device.Host = "from-file"

	err := s.ApplyEnv(envMap(map[string]string{
		EnvHost:     "192.0.2.10",
		EnvUsername: "cisco",
		EnvPassword: "cisco123",
		EnvTimeout:  "15",
		EnvPort:     "2222",
		EnvDryRun:   "true",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}

	if s.Device.Host != "192.0.2.10" {
		t.Errorf("Host = %q, env should override file", s.Device.Host)
	}
	if s.Device.TimeoutSeconds != 15 || s.Device.SSHPort != 2222 {
		t.Errorf("Timeout/Port = %d/%d", s.Device.TimeoutSeconds, s.Device.SSHPort)
	}
	if !s.Server.DryRun {
		t.Error("DryRun should be true")
	}
}

func TestApplyEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"timeout", map[string]string{EnvTimeout: "soon"}},
		{"port", map[string]string{EnvPort: "ssh"}},
		{"dry run", map[string]string{EnvDryRun: "maybe"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Defaults().ApplyEnv(envMap(tt.env))
			if !errors.Is(err, util.ErrConfiguration) {
				t.Errorf("ApplyEnv() error = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestFileSource_RereadsEnvironment(t *testing.T) {
	t.Setenv(EnvHost, "198.51.100.1")
	src := FileSource("")

	d, err := src()
	if err != nil {
		t.Fatal(err)
	}
	if d.Host != "198.51.100.1" {
		t.Errorf("Host = %q", d.Host)
	}

	t.Setenv(EnvHost, "198.51.100.2")
	d, err = src()
	if err != nil {
		t.Fatal(err)
	}
	if d.Host != "198.51.100.2" {
		t.Errorf("Host = %q, source should pick up rotated value", d.Host)
	}
}

func TestStaticSource_ReturnsCopy(t *testing.T) {
	src := StaticSource(DeviceSettings{Host: "a"})
	d, _ := src()
	d.Host = "mutated"

	again, _ := src()
	if again.Host != "a" {
		t.Errorf("StaticSource leaked mutation: %q", again.Host)
	}
}

func TestRuntime_DryRunToggle(t *testing.T) {
	r := NewRuntime(false, StaticSource(DeviceSettings{}))
	if r.DryRun() {
		t.Fatal("initial DryRun should be false")
	}

	r.SetDryRun(true)
	if !r.DryRun() {
		t.Error("DryRun should be visible immediately after SetDryRun(true)")
	}

	r.SetDryRun(false)
	if r.DryRun() {
		t.Error("DryRun should be false after SetDryRun(false)")
	}
}

func TestRuntime_ConcurrentToggle(t *testing.T) {
	r := NewRuntime(false, StaticSource(DeviceSettings{}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v bool) {
			defer wg.Done()
			r.SetDryRun(v)
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			_ = r.DryRun()
		}()
	}
	wg.Wait()

	r.SetDryRun(true)
	if !r.DryRun() {
		t.Error("last write should win")
	}
}
