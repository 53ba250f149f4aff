package pinauth

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestAllowedRoutesByCapability(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	cases := map[string][]string{
		"emp-expense": {"expense", "reports"},
		"emp-time":    {"clock", "manual-entry", "reports"},
		"emp-both":    {"clock", "manual-entry", "expense", "reports"},
		"emp-none":    {},
	}
	for id, want := range cases {
		got, err := te.AllowedRoutes(ctx, id)
		if err != nil {
			t.Fatalf("%s: %v", id, err)
		}
		if len(got) == 0 && len(want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: got %v want %v", id, got, want)
		}
	}
}

func TestAuthorizeDecisions(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		principal string
		requested string
		kind      DecisionKind
		route     string
	}{
		{"emp-expense", "expense", DecisionAllow, "expense"},
		{"emp-expense", "reports", DecisionAllow, "reports"},
		{"emp-expense", "clock", DecisionRedirect, "expense"},
		{"emp-expense", "", DecisionRedirect, "expense"},
		{"emp-time", "expense", DecisionRedirect, "clock"},
		{"emp-both", "manual-entry", DecisionAllow, "manual-entry"},
		{"emp-none", "reports", DecisionDeny, ""},
	}
	for _, tc := range cases {
		d, err := te.Authorize(ctx, tc.principal, tc.requested)
		if err != nil {
			t.Fatalf("%s -> %q: %v", tc.principal, tc.requested, err)
		}
		if d.Kind != tc.kind || d.Route != tc.route {
			t.Fatalf("%s -> %q: got %v %q want %v %q", tc.principal, tc.requested, d.Kind, d.Route, tc.kind, tc.route)
		}
		if d.Kind == DecisionDeny && d.Message == "" {
			t.Fatal("deny must carry a message")
		}
	}
}

func TestAuthorizeCapabilityOutageDenies(t *testing.T) {
	te := newTestEngine(t)

	d, err := te.Authorize(context.Background(), "capability-down", "expense")
	if !errors.Is(err, ErrCapabilityUnavailable) {
		t.Fatalf("expected ErrCapabilityUnavailable, got %v", err)
	}
	if d.Kind != DecisionDeny {
		t.Fatalf("outage must deny, got %v", d.Kind)
	}
}

func TestCaptureRoutePreference(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()
	te.prefs.capture["emp-manual"] = CaptureManual
	te.prefs.capture["emp-clock"] = CaptureClock

	cases := []struct {
		principal string
		requested string
		kind      DecisionKind
		route     string
	}{
		{"emp-manual", "clock", DecisionRedirect, "manual-entry"},
		{"emp-manual", "manual-entry", DecisionAllow, "manual-entry"},
		{"emp-clock", "manual-entry", DecisionRedirect, "clock"},
		{"emp-unset", "clock", DecisionAllow, "clock"},
		{"emp-manual", "expense", DecisionAllow, "expense"},
	}
	for _, tc := range cases {
		d, err := te.CaptureRoute(ctx, tc.principal, tc.requested)
		if err != nil {
			t.Fatalf("%s: %v", tc.principal, err)
		}
		if d.Kind != tc.kind || d.Route != tc.route {
			t.Fatalf("%s -> %q: got %v %q", tc.principal, tc.requested, d.Kind, d.Route)
		}
	}
}
