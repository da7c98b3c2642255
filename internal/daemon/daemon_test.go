package daemon

import (
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/RiosWesley/whatsapp-mkauth/internal/bus"
	"github.com/RiosWesley/whatsapp-mkauth/internal/config"
	"github.com/RiosWesley/whatsapp-mkauth/internal/lock"
	"github.com/RiosWesley/whatsapp-mkauth/internal/status"
	"github.com/RiosWesley/whatsapp-mkauth/internal/supervisor"
	"github.com/RiosWesley/whatsapp-mkauth/internal/tracker"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func TestModuleGraph(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{})); err != nil {
		t.Fatalf("ValidateApp() error = %v", err)
	}
}

type fakeClient struct {
	mu        sync.Mutex
	inits     int
	destroyed bool
}

func (f *fakeClient) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return nil
}

func (f *fakeClient) Destroy(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = true
	return nil
}

type nopAuditor struct{}

func (nopAuditor) Append(string, map[string]any) {}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv, err := NewServer(&config.Config{Port: 0}, handler, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func TestServerStartStop(t *testing.T) {
	srv := newTestServer(t)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	res, err := http.Get("http://" + srv.Addr() + "/")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	body, _ := io.ReadAll(res.Body)
	_ = res.Body.Close()
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := <-errc; err != nil {
		t.Errorf("Start() returned %v after Stop", err)
	}
}

func TestLifecycle(t *testing.T) {
	dir := t.TempDir()
	lk, err := lock.Acquire(dir)
	if err != nil {
		t.Fatal(err)
	}

	b := bus.New()
	client := &fakeClient{}
	sup := supervisor.New(client, status.NewMachine(), b, tracker.New(), nopAuditor{}, zap.NewNop(), supervisor.Options{RestartDelay: time.Hour})
	srv := newTestServer(t)

	lc := fxtest.NewLifecycle(t)
	registerLifecycle(lc, srv, lk, sup, zap.NewNop())
	lc.RequireStart()

	res, err := http.Get("http://" + srv.Addr() + "/")
	if err != nil {
		t.Fatalf("GET after start error = %v", err)
	}
	_ = res.Body.Close()

	client.mu.Lock()
	inits := client.inits
	client.mu.Unlock()
	if inits != 1 {
		t.Errorf("Initialize calls = %d, want 1", inits)
	}

	lc.RequireStop()

	client.mu.Lock()
	destroyed := client.destroyed
	client.mu.Unlock()
	if !destroyed {
		t.Error("expected client to be destroyed on stop")
	}

	again, err := lock.Acquire(dir)
	if err != nil {
		t.Fatalf("lock not released on stop: %v", err)
	}
	_ = again.Release()
}
