package main

import (
	"context"
	"fmt"
	"strings"

	"overdub/internal/jobs"
)

// findJob resolves a full id or a unique short prefix to a job record.
func findJob(ctx context.Context, store *jobs.Store, ref string) (*jobs.Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("job id is required")
	}

	job, err := store.GetByID(ctx, ref)
	if err != nil {
		return nil, err
	}
	if job != nil {
		return job, nil
	}

	all, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	var match *jobs.Job
	for _, candidate := range all {
		if !strings.HasPrefix(candidate.ID, ref) {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("job id %q is ambiguous", ref)
		}
		match = candidate
	}
	if match == nil {
		return nil, fmt.Errorf("job %q not found", ref)
	}
	return match, nil
}
