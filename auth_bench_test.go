package pinauth

import (
	"context"
	"testing"
)

func newBenchmarkEngine(b *testing.B) *testEngine {
	b.Helper()
	te := newTestEngineWith(b, nil, func(cfg *Config) {
		cfg.Metrics.Enabled = false
		cfg.Audit.Enabled = false
	})
	te.enroll(b, "emp-1", "ABC123")
	return te
}

func BenchmarkVerifyPIN(b *testing.B) {
	te := newBenchmarkEngine(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := te.VerifyPIN(ctx, "emp-1", "ABC123")
		if err != nil || !res.Success {
			b.Fatalf("verify failed: %+v %v", res, err)
		}
	}
}

func BenchmarkVerifyPINArgon2(b *testing.B) {
	te := newTestEngineWith(b, nil, func(cfg *Config) {
		cfg.Metrics.Enabled = false
		cfg.Audit.Enabled = false
		cfg.PIN.HashAlgorithm = "argon2id"
		cfg.PIN.Argon2.Memory = 8 * 1024
		cfg.PIN.Argon2.Time = 1
		cfg.PIN.Argon2.Parallelism = 1
	})
	te.enroll(b, "emp-1", "ABC123")
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := te.VerifyPIN(ctx, "emp-1", "ABC123"); err != nil {
			b.Fatalf("verify failed: %v", err)
		}
	}
}

func BenchmarkIssueSession(b *testing.B) {
	te := newBenchmarkEngine(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := te.IssueSession(ctx, "emp-1", Restricted()); err != nil {
			b.Fatalf("issue failed: %v", err)
		}
	}
}

func BenchmarkValidateSession(b *testing.B) {
	te := newBenchmarkEngine(b)
	ctx := context.Background()

	sess, err := te.IssueSession(ctx, "emp-1", Restricted())
	if err != nil {
		b.Fatalf("issue failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := te.ValidateSession(ctx, sess.Token); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkAuthorize(b *testing.B) {
	te := newBenchmarkEngine(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := te.Authorize(ctx, "emp-both", "expense"); err != nil {
			b.Fatalf("authorize failed: %v", err)
		}
	}
}
