package postprocess

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/siteclone/siteclone/internal/log"
	"github.com/siteclone/siteclone/internal/model"
)

// fakeStep records execution order and optionally fails.
type fakeStep struct {
	name string
	err  error
	ran  *[]string
}

func (f *fakeStep) Do(_ context.Context, _ *Job) error {
	*f.ran = append(*f.ran, f.name)
	return f.err
}

func (f *fakeStep) Name() string { return f.name }

func testJob(progress func(float64)) Job {
	return Job{
		Session: model.Session{
			ID:     "test-session",
			Status: model.StatusProcessing,
		},
		Progress: progress,
	}
}

func TestPipelineExecutesInOrder(t *testing.T) {
	t.Parallel()

	var ran []string
	var fractions []float64

	p := New(WithLogger(log.NewLogger(io.Discard, false)))
	p.AddSteps(
		&fakeStep{name: "first", ran: &ran},
		&fakeStep{name: "second", ran: &ran},
		&fakeStep{name: "third", ran: &ran},
	)

	job := testJob(func(f float64) { fractions = append(fractions, f) })
	if err := p.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(ran) != len(want) {
		t.Fatalf("ran %v, want %v", ran, want)
	}
	for i := range want {
		if ran[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, ran[i], want[i])
		}
	}

	wantFractions := []float64{1.0 / 3.0, 2.0 / 3.0, 1.0}
	if len(fractions) != len(wantFractions) {
		t.Fatalf("fractions %v, want %v", fractions, wantFractions)
	}
	for i, f := range wantFractions {
		if fractions[i] != f {
			t.Errorf("fraction %d = %v, want %v", i, fractions[i], f)
		}
	}
}

func TestPipelineStopsOnError(t *testing.T) {
	t.Parallel()

	var ran []string
	stepErr := errors.New("step broke")

	p := New(WithLogger(log.NewLogger(io.Discard, false)))
	p.AddSteps(
		&fakeStep{name: "first", err: stepErr, ran: &ran},
		&fakeStep{name: "second", ran: &ran},
	)

	err := p.Execute(context.Background(), testJob(nil))
	if !errors.Is(err, stepErr) {
		t.Errorf("Execute() error = %v, want %v", err, stepErr)
	}
	if len(ran) != 1 {
		t.Errorf("ran %v, want only the failing step", ran)
	}
}

func TestPipelineContinueOnError(t *testing.T) {
	t.Parallel()

	var ran []string
	stepErr := errors.New("step broke")

	p := New(
		WithLogger(log.NewLogger(io.Discard, false)),
		WithContinueOnError(true),
	)
	p.AddSteps(
		&fakeStep{name: "first", err: stepErr, ran: &ran},
		&fakeStep{name: "second", ran: &ran},
	)

	err := p.Execute(context.Background(), testJob(nil))
	if !errors.Is(err, stepErr) {
		t.Errorf("Execute() error = %v, want first step error %v", err, stepErr)
	}
	if len(ran) != 2 {
		t.Errorf("ran %v, want both steps", ran)
	}
}

func TestPipelineRespectsCancellation(t *testing.T) {
	t.Parallel()

	var ran []string
	p := New(WithLogger(log.NewLogger(io.Discard, false)))
	p.AddStep(&fakeStep{name: "never", ran: &ran})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Execute(ctx, testJob(nil))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
	if len(ran) != 0 {
		t.Errorf("ran %v, want no steps after cancellation", ran)
	}
}

func TestNewStandardStepOrder(t *testing.T) {
	t.Parallel()

	p := NewStandard(log.NewLogger(io.Discard, false))

	want := []string{
		"rewrite-references",
		"optimize-images",
		"generate-service-worker",
		"write-report",
	}
	got := p.StepNames()
	if len(got) != len(want) {
		t.Fatalf("StepNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, got[i], want[i])
		}
	}
}
