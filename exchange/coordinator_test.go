package exchange

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modloc/modloc/bundle"
)

// scriptedRewriter returns one canned step per call.
type scriptedRewriter struct {
	steps []func(instructions, payload string) (string, error)
	calls int
	// instructions received per call, for escalation assertions.
	seen []string
}

func (s *scriptedRewriter) Rewrite(_ context.Context, instructions, payload string) (string, error) {
	s.seen = append(s.seen, instructions)
	if s.calls >= len(s.steps) {
		return "", errors.New("unexpected extra call")
	}
	step := s.steps[s.calls]
	s.calls++
	return step(instructions, payload)
}

func testJob(t *testing.T) (Job, string) {
	t.Helper()
	payload, err := bundle.Join([]bundle.File{{Name: "items.cfg", Text: "[a]\nfoo=Foo\n"}})
	if err != nil {
		t.Fatal(err)
	}
	translated, err := bundle.Join([]bundle.File{{Name: "items.cfg", Text: "[a]\nfoo=Фу\n"}})
	if err != nil {
		t.Fatal(err)
	}
	return Job{
		Name:         "TestMod",
		Payload:      payload,
		Instructions: "translate it",
		Names:        []string{"items.cfg"},
	}, translated
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestCoordinator_SucceedsFirstAttempt(t *testing.T) {
	job, translated := testJob(t)
	rw := &scriptedRewriter{steps: []func(string, string) (string, error){
		func(_, _ string) (string, error) { return translated, nil },
	}}

	c := &Coordinator{Rewriter: rw, sleep: noSleep}
	got, err := c.Run(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if got != translated {
		t.Errorf("payload = %q, want %q", got, translated)
	}
}

func TestCoordinator_RepairsAfterKeyDrop(t *testing.T) {
	job, translated := testJob(t)
	dropped, _ := bundle.Join([]bundle.File{{Name: "items.cfg", Text: "[a]\n"}})

	rw := &scriptedRewriter{steps: []func(string, string) (string, error){
		func(_, _ string) (string, error) { return dropped, nil },
		func(_, _ string) (string, error) { return translated, nil },
	}}

	c := &Coordinator{Rewriter: rw, sleep: noSleep}
	got, err := c.Run(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if got != translated {
		t.Error("repaired attempt not accepted")
	}

	// The second call must carry an escalated instruction naming the problem.
	if len(rw.seen) != 2 {
		t.Fatalf("calls = %d, want 2", len(rw.seen))
	}
	if rw.seen[0] != "translate it" {
		t.Errorf("first instructions = %q", rw.seen[0])
	}
	if !strings.Contains(rw.seen[1], "foo") || !strings.HasPrefix(rw.seen[1], "translate it") {
		t.Errorf("second instructions missing escalation: %q", rw.seen[1])
	}
}

func TestCoordinator_PayloadResentUnchanged(t *testing.T) {
	job, translated := testJob(t)
	var payloads []string
	rw := &scriptedRewriter{steps: []func(string, string) (string, error){
		func(_, p string) (string, error) { payloads = append(payloads, p); return "nonsense", nil },
		func(_, p string) (string, error) { payloads = append(payloads, p); return translated, nil },
	}}

	c := &Coordinator{Rewriter: rw, sleep: noSleep}
	if _, err := c.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if payloads[0] != job.Payload || payloads[1] != job.Payload {
		t.Error("the original payload must be re-sent unchanged on repair")
	}
}

func TestCoordinator_RepairExhausted(t *testing.T) {
	job, _ := testJob(t)
	bad := func(_, _ string) (string, error) { return "still nonsense", nil }
	rw := &scriptedRewriter{steps: []func(string, string) (string, error){bad, bad, bad}}

	c := &Coordinator{Rewriter: rw, MaxRepairs: 2, sleep: noSleep}
	_, err := c.Run(context.Background(), job)
	if !errors.Is(err, ErrRepairExhausted) {
		t.Fatalf("err = %v, want ErrRepairExhausted", err)
	}
	if rw.calls != 3 {
		t.Errorf("calls = %d, want 3 (first attempt + 2 repairs)", rw.calls)
	}
	// The terminal error carries the last diagnostic.
	if !strings.Contains(err.Error(), "marker") {
		t.Errorf("error lacks diagnostic detail: %v", err)
	}
}

func TestCoordinator_QuotaCooldownThenSuccess(t *testing.T) {
	job, translated := testJob(t)
	rw := &scriptedRewriter{steps: []func(string, string) (string, error){
		func(_, _ string) (string, error) { return "", &QuotaError{Message: "rpm exceeded"} },
		func(_, _ string) (string, error) { return translated, nil },
	}}

	var slept []time.Duration
	c := &Coordinator{
		Rewriter:      rw,
		QuotaCooldown: 70 * time.Second,
		sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}
	if _, err := c.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if len(slept) != 1 || slept[0] != 70*time.Second {
		t.Errorf("slept %v, want one 70s cooldown", slept)
	}
	// Quota waits must not consume the structural repair budget: both calls
	// carried the base instructions.
	if rw.seen[1] != "translate it" {
		t.Errorf("instructions escalated on quota retry: %q", rw.seen[1])
	}
}

func TestCoordinator_QuotaExceeded(t *testing.T) {
	job, _ := testJob(t)
	quota := func(_, _ string) (string, error) { return "", &QuotaError{Message: "rpm exceeded"} }
	rw := &scriptedRewriter{steps: []func(string, string) (string, error){quota, quota, quota, quota}}

	c := &Coordinator{Rewriter: rw, MaxQuotaRetries: 3, sleep: noSleep}
	_, err := c.Run(context.Background(), job)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestCoordinator_HonorsRetryAfter(t *testing.T) {
	job, translated := testJob(t)
	rw := &scriptedRewriter{steps: []func(string, string) (string, error){
		func(_, _ string) (string, error) {
			return "", &QuotaError{Message: "busy", RetryAfter: 3 * time.Minute}
		},
		func(_, _ string) (string, error) { return translated, nil },
	}}

	var slept time.Duration
	c := &Coordinator{Rewriter: rw, sleep: func(_ context.Context, d time.Duration) error {
		slept = d
		return nil
	}}
	if _, err := c.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if slept != 3*time.Minute {
		t.Errorf("slept %s, want the service-requested 3m", slept)
	}
}

func TestCoordinator_StripsCodeFenceBeforeValidation(t *testing.T) {
	job, translated := testJob(t)
	rw := &scriptedRewriter{steps: []func(string, string) (string, error){
		func(_, _ string) (string, error) { return "```\n" + strings.TrimRight(translated, "\n") + "\n```", nil },
	}}

	c := &Coordinator{Rewriter: rw, sleep: noSleep}
	got, err := c.Run(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "```") {
		t.Errorf("fence not stripped: %q", got)
	}
}

func TestCoordinator_DumpsDebugArtifacts(t *testing.T) {
	job, translated := testJob(t)
	rw := &scriptedRewriter{steps: []func(string, string) (string, error){
		func(_, _ string) (string, error) { return translated, nil },
	}}

	dir := t.TempDir()
	c := &Coordinator{Rewriter: rw, Dumper: &Dumper{Dir: dir}, sleep: noSleep}
	if _, err := c.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"00_input_bundle.cfg", "01_output_raw_attempt0.txt", "02_output_clean_attempt0.cfg"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("debug dump %s missing: %v", name, err)
		}
	}
}

func TestIsQuotaErr(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{&QuotaError{Message: "x"}, true},
		{errors.New("API returned status 429: slow down"), true},
		{errors.New("RESOURCE_EXHAUSTED something"), true},
		{errors.New("quota exceeded for model"), true},
		{errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		if got := IsQuotaErr(tt.err); got != tt.want {
			t.Errorf("IsQuotaErr(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
