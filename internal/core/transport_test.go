package core

import (
	"context"
	"errors"
	"testing"
)

type fakeTransport struct {
	name       string
	startErr   error
	stopErr    error
	startCalls int
	stopCalls  int
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Start(ctx context.Context) error {
	f.startCalls++
	return f.startErr
}

func (f *fakeTransport) Stop(ctx context.Context) error {
	f.stopCalls++
	return f.stopErr
}

func TestTransportManagerRegisterStartStop(t *testing.T) {
	mgr := NewTransportManager()
	tr := &fakeTransport{name: "web"}
	if err := mgr.Register(tr); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := mgr.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}
	if err := mgr.StopAll(context.Background()); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if tr.startCalls != 1 || tr.stopCalls != 1 {
		t.Fatalf("unexpected calls: start=%d stop=%d", tr.startCalls, tr.stopCalls)
	}
}

func TestTransportManagerDuplicateRegister(t *testing.T) {
	mgr := NewTransportManager()
	if err := mgr.Register(&fakeTransport{name: "web"}); err != nil {
		t.Fatalf("register first: %v", err)
	}
	err := mgr.Register(&fakeTransport{name: "web"})
	if !errors.Is(err, errTransportExists) {
		t.Fatalf("expected errTransportExists, got %v", err)
	}
}

func TestTransportManagerRejectsNil(t *testing.T) {
	mgr := NewTransportManager()
	if err := mgr.Register(nil); !errors.Is(err, errInvalidArguments) {
		t.Fatalf("expected errInvalidArguments, got %v", err)
	}
}

func TestTransportManagerStartFailureStopsStarted(t *testing.T) {
	mgr := NewTransportManager()
	ok := &fakeTransport{name: "a"}
	bad := &fakeTransport{name: "b", startErr: errors.New("bind: address already in use")}
	_ = mgr.Register(ok)
	_ = mgr.Register(bad)

	if err := mgr.StartAll(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if ok.stopCalls != 1 {
		t.Fatalf("started transport must be stopped, stop calls: %d", ok.stopCalls)
	}
	if bad.stopCalls != 0 {
		t.Fatalf("failed transport must not be stopped")
	}
}

func TestTransportManagerStopsInReverseOrder(t *testing.T) {
	mgr := NewTransportManager()
	var order []string
	for _, name := range []string{"b", "a"} {
		_ = mgr.Register(&orderedTransport{name: name, stopped: &order})
	}
	if got := mgr.Names(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("names = %v", got)
	}
	if err := mgr.StartAll(context.Background()); err != nil {
		t.Fatalf("start all: %v", err)
	}
	if err := mgr.StopAll(context.Background()); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("stop order = %v", order)
	}
	if err := mgr.StopAll(context.Background()); err != nil || len(order) != 2 {
		t.Fatalf("second stop all must be a no-op")
	}
}

type orderedTransport struct {
	name    string
	stopped *[]string
}

func (o *orderedTransport) Name() string { return o.name }
func (o *orderedTransport) Start(ctx context.Context) error { return nil }
func (o *orderedTransport) Stop(ctx context.Context) error {
	*o.stopped = append(*o.stopped, o.name)
	return nil
}
