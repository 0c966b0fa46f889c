package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Rewriter is the external text-rewriting capability. It may fail with a
// quota condition, ignore the instructions, or return content that violates
// the bundle contract — its output is always re-validated.
type Rewriter interface {
	Rewrite(ctx context.Context, instructions, payload string) (string, error)
}

// QuotaError signals a rate-limit / resource-exhaustion condition from the
// service. RetryAfter, when non-zero, is the delay the service asked for.
type QuotaError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	return "quota exhausted: " + e.Message
}

// IsQuotaErr reports whether err looks like a rate-limit or quota condition,
// either a typed *QuotaError or a recognizable message from the service.
func IsQuotaErr(err error) bool {
	if err == nil {
		return false
	}
	var qe *QuotaError
	if errors.As(err, &qe) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") ||
		strings.Contains(s, "resource_exhausted") ||
		strings.Contains(s, "resource exhausted") ||
		strings.Contains(s, "quota exceeded") ||
		strings.Contains(s, "rate limit")
}

// Terminal job failures.
var (
	// ErrRepairExhausted: the service kept damaging the bundle structure
	// past the structural-repair attempt budget.
	ErrRepairExhausted = errors.New("structural repair attempts exhausted")
	// ErrQuotaExceeded: the quota-retry budget ran out.
	ErrQuotaExceeded = errors.New("quota retries exhausted")
)

// Coordinator drives repeated Rewrite calls for one job under validator
// feedback and quota signals. Two independent budgets apply: structural
// rejections escalate the instructions and count against MaxRepairs; quota
// and transport failures trigger a fixed cooldown and count against
// MaxQuotaRetries. Nothing is handed back to the caller until a payload has
// passed validation.
type Coordinator struct {
	Rewriter Rewriter
	Limiter  *Limiter

	// MaxRepairs bounds instruction-escalating retries after a structural
	// rejection (default 2, matching two repairs after the first attempt).
	MaxRepairs int
	// MaxQuotaRetries bounds cooldown-and-retry cycles (default 10).
	MaxQuotaRetries int
	// QuotaCooldown is the fixed wait after a quota failure (default 70s).
	QuotaCooldown time.Duration

	// Dumper, when set, records raw and cleaned responses for inspection.
	Dumper *Dumper
	// OnLog emits progress messages.
	OnLog func(format string, args ...any)

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Job is one bundle payload plus the base instructions for the service.
type Job struct {
	// Name identifies the job in logs and debug dumps.
	Name string
	// Payload is the joined bundle to rewrite. It is re-sent unchanged on
	// every attempt; only the instructions escalate.
	Payload string
	// Instructions is the base system instruction text.
	Instructions string
	// Names are the bundled filenames whose markers must survive.
	Names []string
}

func (c *Coordinator) log(format string, args ...any) {
	if c.OnLog != nil {
		c.OnLog(format, args...)
	}
}

func (c *Coordinator) maxRepairs() int {
	if c.MaxRepairs > 0 {
		return c.MaxRepairs
	}
	return 2
}

func (c *Coordinator) maxQuotaRetries() int {
	if c.MaxQuotaRetries > 0 {
		return c.MaxQuotaRetries
	}
	return 10
}

func (c *Coordinator) cooldown() time.Duration {
	if c.QuotaCooldown > 0 {
		return c.QuotaCooldown
	}
	return 70 * time.Second
}

func (c *Coordinator) doSleep(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

// Run executes the job until the returned payload passes validation or a
// budget runs out, and returns the accepted payload. On terminal failure the
// error wraps ErrRepairExhausted or ErrQuotaExceeded together with the last
// diagnostic, and the job's files are left untouched on disk.
func (c *Coordinator) Run(ctx context.Context, job Job) (string, error) {
	instructions := job.Instructions
	repairs := 0
	quotaWaits := 0

	if c.Dumper != nil {
		c.Dumper.Dump("00_input_bundle.cfg", job.Payload)
	}

	for {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		raw, err := c.Rewriter.Rewrite(ctx, instructions, job.Payload)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			quotaWaits++
			if quotaWaits > c.maxQuotaRetries() {
				return "", fmt.Errorf("%s: %w after %d waits: %v", job.Name, ErrQuotaExceeded, c.maxQuotaRetries(), err)
			}
			wait := c.cooldown()
			var qe *QuotaError
			if errors.As(err, &qe) && qe.RetryAfter > wait {
				wait = qe.RetryAfter
			}
			if IsQuotaErr(err) {
				c.log("[QUOTA] %s: %v, waiting %s (retry %d/%d)", job.Name, err, wait, quotaWaits, c.maxQuotaRetries())
			} else {
				c.log("[WARN] %s: transport error: %v, waiting %s (retry %d/%d)", job.Name, err, wait, quotaWaits, c.maxQuotaRetries())
			}
			if err := c.doSleep(ctx, wait); err != nil {
				return "", err
			}
			continue
		}

		cleaned := CleanResponse(raw)
		if c.Dumper != nil {
			c.Dumper.Dump(fmt.Sprintf("01_output_raw_attempt%d.txt", repairs), raw)
			c.Dumper.Dump(fmt.Sprintf("02_output_clean_attempt%d.cfg", repairs), cleaned)
		}

		res := Validate(job.Payload, cleaned, job.Names)
		if res.OK {
			return res.Payload, nil
		}

		repairs++
		if repairs > c.maxRepairs() {
			return "", fmt.Errorf("%s: %w: %s", job.Name, ErrRepairExhausted, res.Diag)
		}
		c.log("[WARN] %s: %s, repairing (attempt %d/%d)", job.Name, res.Diag, repairs, c.maxRepairs())
		instructions = job.Instructions + "\n\n" + res.Diag.Notice()
	}
}
