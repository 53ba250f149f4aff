package flows

import (
	"context"
	"errors"
	"testing"
)

var errProvider = errors.New("provider down")

type fakeFactor struct {
	optedIn  bool
	enrolled bool
	secret   string
	totp     string
	backup   map[string]bool
	fault    error
}

func (f *fakeFactor) deps() SecondFactorDeps {
	return SecondFactorDeps{
		OptedIn: func(context.Context, string) (bool, error) { return f.optedIn, nil },
		HasEnrolledFactor: func(context.Context, string) (bool, error) {
			if f.fault != nil {
				return false, f.fault
			}
			return f.enrolled, nil
		},
		TOTPSecret: func(context.Context, string) (string, error) { return f.secret, nil },
		VerifyTOTP: func(secret, code string) bool { return secret != "" && code == f.totp },
		ConsumeBackupCode: func(_ context.Context, _ string, code string) (bool, error) {
			if f.backup[code] {
				delete(f.backup, code)
				return true, nil
			}
			return false, nil
		},
		Errors: SecondFactorErrors{Unavailable: errProvider},
	}
}

func TestSecondFactorRequiredNeedsBoth(t *testing.T) {
	cases := []struct {
		optedIn, enrolled, want bool
	}{
		{false, false, false},
		{true, false, false},
		{false, true, false},
		{true, true, true},
	}
	for _, tc := range cases {
		f := &fakeFactor{optedIn: tc.optedIn, enrolled: tc.enrolled}
		got, err := RunSecondFactorRequired(context.Background(), "u1", f.deps())
		if err != nil || got != tc.want {
			t.Fatalf("opted=%v enrolled=%v: got %v %v", tc.optedIn, tc.enrolled, got, err)
		}
	}
}

func TestSecondFactorRequiredUnconfigured(t *testing.T) {
	got, err := RunSecondFactorRequired(context.Background(), "u1", SecondFactorDeps{})
	if err != nil || got {
		t.Fatalf("unconfigured gate must not be required, got %v %v", got, err)
	}
}

func TestSecondFactorRequiredProviderFault(t *testing.T) {
	f := &fakeFactor{optedIn: true, fault: errors.New("timeout")}
	if _, err := RunSecondFactorRequired(context.Background(), "u1", f.deps()); !errors.Is(err, errProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestVerifySecondFactorTOTPThenBackup(t *testing.T) {
	f := &fakeFactor{secret: "S", totp: "123456", backup: map[string]bool{"BACKUP1": true}}

	res, err := RunVerifySecondFactor(context.Background(), "u1", "123456", f.deps())
	if err != nil || !res.Success || res.Method != MethodTOTP {
		t.Fatalf("expected totp success, got %+v %v", res, err)
	}

	res, err = RunVerifySecondFactor(context.Background(), "u1", "BACKUP1", f.deps())
	if err != nil || !res.Success || res.Method != MethodBackupCode {
		t.Fatalf("expected backup success, got %+v %v", res, err)
	}

	res, err = RunVerifySecondFactor(context.Background(), "u1", "BACKUP1", f.deps())
	if err != nil || res.Success || res.Reason != ReasonInvalidSecondFactor {
		t.Fatalf("backup code must be single use, got %+v %v", res, err)
	}
}

func TestVerifySecondFactorEmptyCodeFails(t *testing.T) {
	f := &fakeFactor{secret: "S", totp: "123456", backup: map[string]bool{"": true}}
	res, err := RunVerifySecondFactor(context.Background(), "u1", "   ", f.deps())
	if err != nil || res.Success {
		t.Fatalf("blank code must fail, got %+v %v", res, err)
	}
	if !f.backup[""] {
		t.Fatal("blank code must not reach the provider")
	}
}

func TestVerifySecondFactorPrefersConsumeTOTP(t *testing.T) {
	f := &fakeFactor{secret: "S", totp: "111111"}
	used := map[string]bool{}
	deps := f.deps()
	deps.ConsumeTOTP = func(_ context.Context, _ string, secret, code string) (bool, error) {
		if secret == "" || code != f.totp || used[code] {
			return false, nil
		}
		used[code] = true
		return true, nil
	}

	res, err := RunVerifySecondFactor(context.Background(), "u1", "111111", deps)
	if err != nil || !res.Success || res.Method != MethodTOTP {
		t.Fatalf("first use: %+v %v", res, err)
	}
	res, err = RunVerifySecondFactor(context.Background(), "u1", "111111", deps)
	if err != nil || res.Success {
		t.Fatalf("replayed code must fail, got %+v %v", res, err)
	}
}

func TestVerifySecondFactorConsumeTOTPFault(t *testing.T) {
	f := &fakeFactor{secret: "S"}
	deps := f.deps()
	deps.ConsumeTOTP = func(context.Context, string, string, string) (bool, error) {
		return false, errors.New("redis down")
	}
	if _, err := RunVerifySecondFactor(context.Background(), "u1", "111111", deps); !errors.Is(err, errProvider) {
		t.Fatalf("expected provider fault, got %v", err)
	}
}
