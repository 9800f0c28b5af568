package main

import (
	"testing"

	"github.com/gwillem/armrecord/pkg/trajectory"
)

func TestSummarize(t *testing.T) {
	steps := []trajectory.Step{
		{StepType: trajectory.First, NextStepType: trajectory.Mid, Reward: -1},
		{StepType: trajectory.Mid, NextStepType: trajectory.Mid, Index: 1, NextIndex: 2, Reward: -0.5},
		{StepType: trajectory.Last, NextStepType: trajectory.Mid, Index: 1, NextIndex: 2, Reward: -0.5},
	}
	s := summarize(trajectory.Header{Session: "abc"}, steps)

	if s.Records != 3 {
		t.Errorf("Records = %d, want 3", s.Records)
	}
	if s.Kinds[trajectory.Last] != 1 || s.Kinds[trajectory.Mid] != 1 || s.Kinds[trajectory.First] != 1 {
		t.Errorf("Kinds = %v", s.Kinds)
	}
	if !s.Closed {
		t.Error("expected closed episode")
	}
	if s.Reward != -2 {
		t.Errorf("Reward = %v, want -2", s.Reward)
	}

	if summarize(trajectory.Header{}, steps[:2]).Closed {
		t.Error("episode without LAST record reported closed")
	}
	if summarize(trajectory.Header{}, nil).Closed {
		t.Error("empty shard reported closed")
	}
}

func TestParseImageShape(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"64x48x3", []int{64, 48, 3}, false},
		{"64x48", nil, true},
		{"64x0x3", nil, true},
		{"axbxc", nil, true},
	}
	for _, tt := range tests {
		got, err := parseImageShape(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseImageShape(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if len(got) != len(tt.want) {
			t.Errorf("parseImageShape(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseImageShape(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint("0.15, -0.05")
	if err != nil {
		t.Fatalf("parsePoint() error = %v", err)
	}
	if p.X != 0.15 || p.Y != -0.05 {
		t.Errorf("parsePoint() = %v", p)
	}
	for _, bad := range []string{"", "1", "a,b", "1,2,3"} {
		if _, err := parsePoint(bad); err == nil {
			t.Errorf("parsePoint(%q) expected error", bad)
		}
	}
}
