package pinauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func drainAudit(te *testEngine) []AuditEvent {
	te.Close()
	var out []AuditEvent
	for {
		select {
		case ev := <-te.sink.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestAuditTrailForLockout(t *testing.T) {
	te := newTestEngine(t)
	ctx := WithClientIP(context.Background(), "10.1.2.3")
	te.enroll(t, "emp-1", "ABC123")

	for i := 0; i < 5; i++ {
		if _, err := te.VerifyPIN(ctx, "emp-1", "ZZZ999"); err != nil {
			t.Fatalf("VerifyPIN: %v", err)
		}
	}
	te.clock.Advance(15 * time.Minute)
	if _, err := te.VerifyPIN(ctx, "emp-1", "ABC123"); err != nil {
		t.Fatalf("VerifyPIN: %v", err)
	}

	events := drainAudit(te)
	var types []string
	for _, ev := range events {
		types = append(types, ev.EventType)
		for k, v := range ev.Metadata {
			if strings.Contains(v, "ABC123") || strings.Contains(v, "ZZZ999") {
				t.Fatalf("audit metadata %s leaks a PIN", k)
			}
		}
	}

	want := []string{
		auditEventCredentialIssued,
		auditEventPINVerifyFailure,
		auditEventPINVerifyFailure,
		auditEventPINVerifyFailure,
		auditEventPINVerifyFailure,
		auditEventPINLocked,
		auditEventPINVerifySuccess,
	}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("audit trail\n got %v\nwant %v", types, want)
	}

	locked := events[5]
	if locked.Success || locked.Reason != "locked" || locked.Metadata["failed_attempts"] != "5" {
		t.Fatalf("unexpected lock event %+v", locked)
	}
	if events[1].IP != "10.1.2.3" {
		t.Fatalf("client ip not recorded: %+v", events[1])
	}
	if events[4].Metadata["remaining_attempts"] != "1" {
		t.Fatalf("unexpected remaining attempts %+v", events[4].Metadata)
	}
}

func TestAuditStoreFaultCarriesErrorCode(t *testing.T) {
	te := newTestEngine(t)
	te.enroll(t, "emp-1", "ABC123")
	te.store.fault = errors.New("connection refused")

	if _, err := te.VerifyPIN(context.Background(), "emp-1", "ABC123"); err == nil {
		t.Fatal("expected store error")
	}

	events := drainAudit(te)
	last := events[len(events)-1]
	if last.EventType != auditEventPINVerifyFailure || last.Error != string(auditErrStoreUnavailable) {
		t.Fatalf("unexpected event %+v", last)
	}
	if last.Metadata["op"] != "get" {
		t.Fatalf("unexpected op %+v", last.Metadata)
	}
}

func TestAuditSessionAndRouteEvents(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	sess, err := te.IssueSession(ctx, "emp-expense", Restricted())
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	if _, err := te.Authorize(ctx, "emp-expense", "clock"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if _, err := te.Authorize(ctx, "emp-none", "clock"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if err := te.DestroySession(ctx, sess.Token); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}

	events := drainAudit(te)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d: %+v", len(events), events)
	}
	if events[0].EventType != auditEventSessionIssued || events[0].SessionID != sess.ID || events[0].Metadata["restricted"] != "true" {
		t.Fatalf("unexpected issue event %+v", events[0])
	}
	if events[1].EventType != auditEventRouteRedirect || events[1].Metadata["redirect_route"] != "expense" {
		t.Fatalf("unexpected redirect event %+v", events[1])
	}
	if events[2].EventType != auditEventRouteDenied {
		t.Fatalf("unexpected deny event %+v", events[2])
	}
	if events[3].EventType != auditEventSessionDestroyed || events[3].SessionID != sess.ID {
		t.Fatalf("unexpected destroy event %+v", events[3])
	}
}

func TestAuditDisabledEmitsNothing(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Audit.Enabled = false })
	te.enroll(t, "emp-1", "ABC123")
	if events := drainAudit(te); len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}
