package repository

import (
	"testing"
	"time"

	"reservo/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

// The overlap predicate is the load-bearing piece of the conflict check, so
// its shape is pinned here: inclusive comparisons on both boundaries, and
// only APPROVED reservations participate.
func TestOverlapFilter(t *testing.T) {
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	filter := overlapFilter("64a000000000000000000001", start, end)

	if got := filter["facility_id"]; got != "64a000000000000000000001" {
		t.Errorf("expected facility_id in filter, got %v", got)
	}
	if got := filter["status"]; got != model.StatusApproved {
		t.Errorf("expected only APPROVED to block, got status %v", got)
	}

	startCond, ok := filter["start_time"].(bson.M)
	if !ok {
		t.Fatalf("expected start_time condition, got %v", filter["start_time"])
	}
	if got, ok := startCond["$lte"]; !ok || got != end {
		t.Errorf("expected start_time $lte end (inclusive), got %v", startCond)
	}

	endCond, ok := filter["end_time"].(bson.M)
	if !ok {
		t.Fatalf("expected end_time condition, got %v", filter["end_time"])
	}
	if got, ok := endCond["$gte"]; !ok || got != start {
		t.Errorf("expected end_time $gte start (inclusive), got %v", endCond)
	}
}

func TestStatusFilter_ExcludesPastStartTimes(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	filter := statusFilter(model.StatusPending, now)

	if got := filter["status"]; got != model.StatusPending {
		t.Errorf("expected status in filter, got %v", got)
	}
	cond, ok := filter["start_time"].(bson.M)
	if !ok {
		t.Fatalf("expected start_time condition, got %v", filter["start_time"])
	}
	if got, ok := cond["$gt"]; !ok || got != now {
		t.Errorf("expected start_time $gt cutoff (strict), got %v", cond)
	}
}
