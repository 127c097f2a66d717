package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobsInOrder(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "first"}, nil, &stubJob{name: "second"})
	registry.Register(&stubJob{name: "third"})
	registry.Register(nil)

	jobs := registry.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	want := []string{"first", "second", "third"}
	for i, job := range jobs {
		if job.Name() != want[i] {
			t.Fatalf("job %d: expected %s, got %s", i, want[i], job.Name())
		}
	}
}

func TestRegistryJobsReturnsCopy(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "only"})
	jobs := registry.Jobs()
	jobs[0] = &stubJob{name: "mutated"}
	if registry.Jobs()[0].Name() != "only" {
		t.Fatalf("mutating the returned slice must not affect the registry")
	}
}
