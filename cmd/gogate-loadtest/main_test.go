package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/permission"
	"github.com/MrEthical07/goGate/session"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %d", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %d", got)
	}
	if got := percentile(nil, 99); got != 0 {
		t.Fatalf("empty = %d", got)
	}
}

func TestRunPhaseCountsFailures(t *testing.T) {
	n := 0
	stats := runPhase(10, 1, func(*rand.Rand) error {
		n++
		if n%2 == 0 {
			return errors.New("boom")
		}
		return nil
	})
	if stats.ops != 10 || stats.failures != 5 || stats.firstErr == nil {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestBuildEngineOwnedCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	engine, err := buildEngine(client, 2)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	issued, err := engine.CreateSession(ctx, "u1", session.Fingerprint{})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	req := goGate.GateRequest{
		Method:      http.MethodDelete,
		Token:       issued.Token,
		CSRFCookie:  issued.CSRFToken,
		CSRFHeader:  issued.CSRFToken,
		Class:       goGate.RouteAPI,
		Permissions: []permission.Permission{permission.MediaDelete},
		Resource:    &permission.Resource{Kind: "media", ID: "m-u1"},
	}
	if _, err := engine.Check(ctx, req); err != nil {
		t.Fatalf("owned delete: %v", err)
	}
	req.Resource.ID = "m-u0"
	if _, err := engine.Check(ctx, req); !errors.Is(err, goGate.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}
