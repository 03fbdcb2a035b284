package ui

import "testing"

func TestStatusTrackerSupersedes(t *testing.T) {
	var tracker statusTracker

	first := tracker.bump()
	if !tracker.isLatest(first) {
		t.Error("A fresh generation must be latest")
	}

	second := tracker.bump()
	if tracker.isLatest(first) {
		t.Error("A superseded generation must not hide the newer status")
	}
	if !tracker.isLatest(second) {
		t.Error("The newest generation must be latest")
	}
}
