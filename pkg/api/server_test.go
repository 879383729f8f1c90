package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/newtron-network/devapi/internal/testutil"
	"github.com/newtron-network/devapi/pkg/audit"
	"github.com/newtron-network/devapi/pkg/command"
	"github.com/newtron-network/devapi/pkg/executor"
	"github.com/newtron-network/devapi/pkg/interaction"
	"github.com/newtron-network/devapi/pkg/settings"
)

type fixture struct {
	handler http.Handler
	svc     *interaction.Service
	cli     *testutil.StubCLIDialer
	nc      *testutil.StubNetconfDialer
}

func newFixture(t *testing.T, dryRun bool) *fixture {
	t.Helper()
	return newFixtureWith(t, testutil.Runtime(dryRun))
}

func newFixtureWith(t *testing.T, rt *settings.Runtime) *fixture {
	t.Helper()
	f := &fixture{
		cli: &testutil.StubCLIDialer{Output: "ok"},
		nc:  &testutil.StubNetconfDialer{Data: "<data><dummy>value</dummy></data>"},
	}
	exec := executor.New(rt, &executor.CLIRunner{Dialer: f.cli}, &executor.NetconfRunner{Dialer: f.nc})
	f.svc = interaction.New(rt, exec)
	f.handler = NewServer(f.svc).Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s %s Content-Type = %q", method, path, ct)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("%s %s: decoding %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, decoded
}

const validLoopback = `{"loopback_number": 1, "ip_address": "192.168.1.1", "subnet_mask": "255.255.255.0"}`

func TestConfigureLoopback(t *testing.T) {
	f := newFixture(t, false)

	code, body := f.do(t, http.MethodPost, "/configure-loopback/", validLoopback)
	if code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["message"] != executor.MessageApplied {
		t.Errorf("message = %v", body["message"])
	}
	if len(f.cli.Sent()) != 1 {
		t.Errorf("sent %d command sets, want 1", len(f.cli.Sent()))
	}
}

func TestConfigureLoopback_DryRun(t *testing.T) {
	f := newFixture(t, true)

	code, body := f.do(t, http.MethodPost, "/configure-loopback/", validLoopback)
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}

	want := []interface{}{
		"interface Loopback1",
		"description Loopback interface 1",
		"ipv4 address 192.168.1.1 255.255.255.0",
		"commit",
	}
	if !reflect.DeepEqual(body["commands"], want) {
		t.Errorf("commands = %v, want %v", body["commands"], want)
	}
	if len(f.cli.Dials()) != 0 {
		t.Error("device contacted in dry-run mode")
	}
}

func TestConfigureLoopback_MissingSettings(t *testing.T) {
	noHost := testutil.TestDevice()
	noHost.Host = ""
	noPassword := testutil.TestDevice()
	noPassword.Password = ""

	tests := []struct {
		name    string
		device  settings.DeviceSettings
		dryRun  bool
		want    int
		wantMsg string
	}{
		{"no host dry run previews", noHost, true, http.StatusOK, ""},
		{"no host live", noHost, false, http.StatusInternalServerError, ""},
		{"no password dry run previews", noPassword, true, http.StatusOK, ""},
		{"no password live", noPassword, false, http.StatusInternalServerError, settings.EnvPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureWith(t, settings.NewRuntime(tt.dryRun, settings.StaticSource(tt.device)))
			code, body := f.do(t, http.MethodPost, "/configure-loopback/", validLoopback)
			if code != tt.want {
				t.Fatalf("status = %d, want %d, body = %v", code, tt.want, body)
			}
			if msg, _ := body["error"].(string); !strings.Contains(msg, tt.wantMsg) {
				t.Errorf("error = %q, want it to name %s", msg, tt.wantMsg)
			}
			if len(f.cli.Dials()) != 0 {
				t.Error("device contacted with unusable settings")
			}
		})
	}
}

func TestConfigureLoopback_BadRequests(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing number", `{"ip_address": "10.0.0.1", "subnet_mask": "255.255.255.255"}`, "loopback_number"},
		{"bad ip", `{"loopback_number": 1, "ip_address": "10.0.0.256", "subnet_mask": "255.255.255.255"}`, "ip_address"},
		{"bad mask", `{"loopback_number": 1, "ip_address": "10.0.0.1", "subnet_mask": "255.0.255.0"}`, "subnet_mask"},
		{"negative number", `{"loopback_number": -1, "ip_address": "10.0.0.1", "subnet_mask": "255.255.255.255"}`, "loopback_number"},
		{"string number", `{"loopback_number": "one", "ip_address": "10.0.0.1", "subnet_mask": "255.255.255.255"}`, "loopback_number"},
		{"not json", `{loopback`, "error"},
		{"empty", ``, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			code, body := f.do(t, http.MethodPost, "/configure-loopback/", tt.body)
			if code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %v", code, body)
			}
			if _, ok := body[tt.wantField]; !ok {
				t.Errorf("body %v has no %q", body, tt.wantField)
			}
			if len(f.cli.Dials()) != 0 {
				t.Error("device contacted for a bad request")
			}
		})
	}
}

func TestConfigureLoopback_DeviceFailure(t *testing.T) {
	f := newFixture(t, false)
	f.cli.DialErr = errors.New("connection refused")

	code, body := f.do(t, http.MethodPost, "/configure-loopback/", validLoopback)
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	msg, _ := body["error"].(string)
	if !strings.HasPrefix(msg, "Configuration failed: ") || !strings.Contains(msg, "connection refused") {
		t.Errorf("error = %q", msg)
	}
	if body["kind"] != string(executor.ConnectionError) {
		t.Errorf("kind = %v", body["kind"])
	}
}

func TestDeleteLoopback(t *testing.T) {
	for _, path := range []string{"/delete-loopback/5/", "/delete-loopback/5"} {
		t.Run(path, func(t *testing.T) {
			f := newFixture(t, false)
			code, body := f.do(t, http.MethodDelete, path, "")
			if code != http.StatusAccepted {
				t.Fatalf("status = %d, body = %v", code, body)
			}
			if body["message"] != "Loopback5 deleted successfully" {
				t.Errorf("message = %v", body["message"])
			}
		})
	}
}

func TestDeleteLoopback_Invalid(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/delete-loopback/", "loopback_number is required."},
		{"/delete-loopback/%20/", "loopback_number is required."},
		{"/delete-loopback/abc/", "loopback_number must be an integer between 0 and 2147483647."},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			f := newFixture(t, false)
			code, body := f.do(t, http.MethodDelete, tt.path, "")
			if code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %v", code, body)
			}
			if body["error"] != tt.want {
				t.Errorf("error = %v, want %q", body["error"], tt.want)
			}
			if len(f.cli.Dials()) != 0 {
				t.Error("device contacted")
			}
		})
	}
}

func TestDeleteLoopback_DryRun(t *testing.T) {
	f := newFixture(t, true)

	code, body := f.do(t, http.MethodDelete, "/delete-loopback/9/", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	cmds, _ := body["commands"].([]interface{})
	if len(cmds) != 4 || cmds[1] != "no interface Loopback9" {
		t.Errorf("commands = %v", body["commands"])
	}
}

func TestListInterfaces(t *testing.T) {
	f := newFixture(t, false)

	code, body := f.do(t, http.MethodGet, "/interfaces/", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	want := map[string]interface{}{"data": map[string]interface{}{"dummy": "value"}}
	if !reflect.DeepEqual(body, want) {
		t.Errorf("body = %v, want %v", body, want)
	}
}

func TestListInterfaces_DryRun(t *testing.T) {
	f := newFixture(t, true)

	code, body := f.do(t, http.MethodGet, "/interfaces/", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if body["filter"] != command.InterfaceQueryFilter().Filter {
		t.Errorf("filter = %v", body["filter"])
	}
}

func TestListInterfaces_Failure(t *testing.T) {
	f := newFixture(t, false)
	f.nc.DialErr = errors.New("authentication failed")

	code, body := f.do(t, http.MethodGet, "/interfaces/", "")
	if code != http.StatusInternalServerError {
		t.Fatalf("status = %d, body = %v", code, body)
	}
	if msg, _ := body["error"].(string); !strings.HasPrefix(msg, "Failed to retrieve interfaces: ") {
		t.Errorf("error = %q", msg)
	}
}

func TestConfigureDryRun(t *testing.T) {
	f := newFixture(t, false)

	for _, method := range []string{http.MethodPut, http.MethodPost} {
		code, body := f.do(t, method, "/configure-dry-run/", `{"dry_run_mode": true}`)
		if code != http.StatusOK {
			t.Fatalf("%s status = %d, body = %v", method, code, body)
		}
		if body["status"] != "Dry run mode updated successfully." {
			t.Errorf("status = %v", body["status"])
		}
	}
	if !f.svc.DryRun() {
		t.Fatal("dry-run mode not enabled")
	}

	// The very next change is previewed
	code, _ := f.do(t, http.MethodPost, "/configure-loopback/", validLoopback)
	if code != http.StatusOK {
		t.Errorf("configure after enabling dry run: status = %d, want 200", code)
	}

	_, body := f.do(t, http.MethodGet, "/configure-dry-run/", "")
	if body["dry_run_mode"] != true {
		t.Errorf("GET dry_run_mode = %v", body["dry_run_mode"])
	}

	f.do(t, http.MethodPut, "/configure-dry-run/", `{"dry_run_mode": false}`)
	code, _ = f.do(t, http.MethodPost, "/configure-loopback/", validLoopback)
	if code != http.StatusAccepted {
		t.Errorf("configure after disabling dry run: status = %d, want 202", code)
	}
}

func TestConfigureDryRun_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing", `{}`},
		{"not boolean", `{"dry_run_mode": "maybe"}`},
		{"number", `{"dry_run_mode": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			code, body := f.do(t, http.MethodPut, "/configure-dry-run/", tt.body)
			if code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %v", code, body)
			}
			if _, ok := body["dry_run_mode"]; !ok {
				t.Errorf("body %v has no dry_run_mode error", body)
			}
			if f.svc.DryRun() {
				t.Error("dry-run mode changed by a bad request")
			}
		})
	}
}

func TestAuditEndpoint(t *testing.T) {
	f := newFixture(t, false)
	l, err := audit.NewFileLogger(filepath.Join(t.TempDir(), "audit.log"), audit.RotationConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	f.svc.WithAudit(l)

	f.do(t, http.MethodPost, "/configure-loopback/", validLoopback)
	f.do(t, http.MethodDelete, "/delete-loopback/1/", "")
	f.do(t, http.MethodDelete, "/delete-loopback/2/", "")

	req := httptest.NewRequest(http.MethodGet, "/audit/?operation=delete_loopback&limit=1", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var events []audit.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Commands[1] != "no interface Loopback2" {
		t.Errorf("newest delete event = %+v", events[0])
	}
	if events[0].ClientIP != "192.0.2.1" {
		t.Errorf("ClientIP = %q, want httptest remote address", events[0].ClientIP)
	}

	code, _ := f.do(t, http.MethodGet, "/audit/?limit=zero", "")
	if code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", code)
	}
}

func TestHealthAndRouting(t *testing.T) {
	f := newFixture(t, false)

	code, body := f.do(t, http.MethodGet, "/healthz", "")
	if code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", code, body)
	}

	code, _ = f.do(t, http.MethodGet, "/nowhere/", "")
	if code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", code)
	}

	code, _ = f.do(t, http.MethodGet, "/configure-loopback/", "")
	if code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method status = %d", code)
	}
}

func TestServe_Shutdown(t *testing.T) {
	f := newFixture(t, false)
	srv := NewServer(f.svc)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
