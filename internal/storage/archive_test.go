package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/yt110010111/market-analysis-LLM/pkg/research"
)

func TestMemoryArchive(t *testing.T) {
	ctx := context.Background()
	a := NewMemory()

	if _, err := a.Get(ctx, "job_missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := a.Put(ctx, Job{}); err == nil {
		t.Fatal("expected error for empty id")
	}

	job := Job{ID: "job_b", Query: "ev batteries", Status: JobPending}
	if err := a.Put(ctx, job); err != nil {
		t.Fatal(err)
	}
	job.Status = JobDone
	job.Result = &research.Result{Report: "# report"}
	if err := a.Put(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := a.Put(ctx, Job{ID: "job_a"}); err != nil {
		t.Fatal(err)
	}

	got, err := a.Get(ctx, "job_b")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != JobDone || got.Result == nil || got.Result.Report != "# report" {
		t.Errorf("job = %+v", got)
	}

	ids, _ := a.List(ctx)
	if len(ids) != 2 || ids[0] != "job_a" || ids[1] != "job_b" {
		t.Errorf("ids = %v", ids)
	}
}

func TestS3Keys(t *testing.T) {
	a := NewS3(NewS3Params{Bucket: "b", Prefix: "/archive/"})
	if got := a.jobKey("job_1"); got != "archive/job_1.json" {
		t.Errorf("jobKey = %q", got)
	}
	if got := a.reportKey("job_1"); got != "archive/job_1.md" {
		t.Errorf("reportKey = %q", got)
	}
	if got := NewS3(NewS3Params{}).prefix; got != defaultPrefix {
		t.Errorf("prefix = %q", got)
	}
}
