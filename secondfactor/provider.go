package secondfactor

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/pinauth"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotEnrolled is returned by Confirm when no secret is pending.
	ErrNotEnrolled = errors.New("second factor not enrolled")
	// ErrInvalidCode is returned by Confirm for a wrong TOTP code.
	ErrInvalidCode = errors.New("invalid totp code")
	// ErrInvalidPrincipal is returned for an empty principal ID.
	ErrInvalidPrincipal = errors.New("invalid principal")
)

// Config tunes a [Provider].
type Config struct {
	// Issuer is shown by authenticator apps. Defaults to "pinauth".
	Issuer string
	// SealKey is the 32-byte key sealing TOTP secrets at rest.
	SealKey []byte
	// Skew is the number of 30-second steps accepted either side of now.
	Skew uint
	// KeyPrefix namespaces Redis keys. Defaults to "psf".
	KeyPrefix string
	// Now overrides the clock used for TOTP validation.
	Now func() time.Time
}

// Provider is a Redis-backed TOTP and backup-code backend.
type Provider struct {
	store  *redisStore
	sealer *sealer
	issuer string
	skew   uint
	now    func() time.Time

	randomIndex func(int) (int, error)
}

var (
	_ pinauth.SecondFactorProvider = (*Provider)(nil)
	_ pinauth.TOTPConsumer         = (*Provider)(nil)
)

// Enrollment is returned by [Provider.Enroll]. Secret is shown to the principal
// once; it is stored sealed.
type Enrollment struct {
	Secret string
	URI    string
}

// NewProvider returns a Provider on rdb.
func NewProvider(rdb redis.UniversalClient, cfg Config) (*Provider, error) {
	if rdb == nil {
		return nil, errors.New("secondfactor: redis client is required")
	}
	s, err := newSealer(cfg.SealKey)
	if err != nil {
		return nil, fmt.Errorf("secondfactor: %w", err)
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "pinauth"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "psf"
	}
	if cfg.Skew == 0 {
		cfg.Skew = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Provider{
		store:  &redisStore{redis: rdb, prefix: cfg.KeyPrefix},
		sealer: s,
		issuer: cfg.Issuer,
		skew:   cfg.Skew,
		now:    cfg.Now,
	}, nil
}

func (p *Provider) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    30,
		Skew:      p.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Enroll generates a new TOTP secret for principalID and stores it
// unconfirmed, replacing any previous secret. account labels the entry in the
// authenticator app.
func (p *Provider) Enroll(ctx context.Context, principalID, account string) (*Enrollment, error) {
	if principalID == "" {
		return nil, ErrInvalidPrincipal
	}
	if account == "" {
		account = principalID
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      p.issuer,
		AccountName: account,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp key: %w", err)
	}

	sealed, err := p.sealer.seal(principalID, key.Secret())
	if err != nil {
		return nil, fmt.Errorf("seal totp secret: %w", err)
	}
	if err := p.store.putSecret(ctx, principalID, sealed); err != nil {
		return nil, err
	}
	return &Enrollment{Secret: key.Secret(), URI: key.URL()}, nil
}

// Confirm activates a pending secret once the principal proves possession.
func (p *Provider) Confirm(ctx context.Context, principalID, code string) error {
	sealed, _, err := p.store.secret(ctx, principalID)
	if err != nil {
		return err
	}
	if sealed == "" {
		return ErrNotEnrolled
	}
	secret, err := p.sealer.open(principalID, sealed)
	if err != nil {
		return err
	}
	ok, err := p.ConsumeTOTP(ctx, principalID, secret, code)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}
	return p.store.confirm(ctx, principalID)
}

// ProvisionURI renders the otpauth:// URI for an existing secret.
func (p *Provider) ProvisionURI(secret, account string) string {
	label := url.PathEscape(p.issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", p.issuer)
	v.Set("period", strconv.Itoa(30))
	v.Set("digits", strconv.Itoa(otp.DigitsSix.Length()))
	v.Set("algorithm", strings.ToUpper(otp.AlgorithmSHA1.String()))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// GenerateBackupCodes issues a fresh set of formatted codes and replaces every
// previous code. Only hashes are stored.
func (p *Provider) GenerateBackupCodes(ctx context.Context, principalID string) ([]string, error) {
	if principalID == "" {
		return nil, ErrInvalidPrincipal
	}
	codes := make([]string, 0, BackupCodeCount)
	hashes := make([]string, 0, BackupCodeCount)
	seen := make(map[string]struct{}, BackupCodeCount)
	for len(codes) < BackupCodeCount {
		code, err := NewBackupCode(BackupCodeLength, p.randomIndex)
		if err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, FormatBackupCode(code))
		hashes = append(hashes, BackupCodeHash(principalID, code))
	}
	if err := p.store.replaceCodes(ctx, principalID, hashes); err != nil {
		return nil, err
	}
	return codes, nil
}

// RemainingBackupCodes returns how many unused codes principalID has.
func (p *Provider) RemainingBackupCodes(ctx context.Context, principalID string) (int, error) {
	return p.store.codeCount(ctx, principalID)
}

// Disable removes the TOTP secret and every backup code of principalID.
func (p *Provider) Disable(ctx context.Context, principalID string) error {
	return p.store.remove(ctx, principalID)
}

// HasEnrolledFactor reports a confirmed TOTP secret or at least one unused
// backup code.
func (p *Provider) HasEnrolledFactor(ctx context.Context, principalID string) (bool, error) {
	sealed, confirmed, err := p.store.secret(ctx, principalID)
	if err != nil {
		return false, err
	}
	if sealed != "" && confirmed {
		return true, nil
	}
	n, err := p.store.codeCount(ctx, principalID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TOTPSecret returns the confirmed secret, or "" when there is none.
func (p *Provider) TOTPSecret(ctx context.Context, principalID string) (string, error) {
	sealed, confirmed, err := p.store.secret(ctx, principalID)
	if err != nil {
		return "", err
	}
	if sealed == "" || !confirmed {
		return "", nil
	}
	return p.sealer.open(principalID, sealed)
}

// VerifyTOTP checks a six-digit code against secret at the provider's clock.
// It is stateless and accepts a code again while its step is in the window;
// [Provider.ConsumeTOTP] is the replay-safe form.
func (p *Provider) VerifyTOTP(secret, code string) bool {
	_, ok := p.matchStep(secret, code)
	return ok
}

// ConsumeTOTP verifies code and records its time step for principalID. A code
// whose step is not newer than the last accepted one is rejected.
func (p *Provider) ConsumeTOTP(ctx context.Context, principalID, secret, code string) (bool, error) {
	if principalID == "" {
		return false, nil
	}
	step, ok := p.matchStep(secret, code)
	if !ok {
		return false, nil
	}
	return p.store.advanceStep(ctx, principalID, step)
}

// matchStep returns the 30-second step within the skew window whose code
// equals code, newest first.
func (p *Provider) matchStep(secret, code string) (int64, bool) {
	code = strings.TrimSpace(code)
	if secret == "" || len(code) != otp.DigitsSix.Length() {
		return 0, false
	}
	opts := p.validateOpts()
	period := int64(opts.Period)
	base := p.now().UTC().Unix() / period
	for off := int64(opts.Skew); off >= -int64(opts.Skew); off-- {
		step := base + off
		if step < 0 {
			continue
		}
		want, err := totp.GenerateCodeCustom(secret, time.Unix(step*period, 0).UTC(), opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}

// ConsumeBackupCode removes a matching code and reports whether it existed.
func (p *Provider) ConsumeBackupCode(ctx context.Context, principalID, code string) (bool, error) {
	canonical := CanonicalizeBackupCode(code)
	if len(canonical) != BackupCodeLength {
		return false, nil
	}
	return p.store.consumeCode(ctx, principalID, BackupCodeHash(principalID, canonical))
}
