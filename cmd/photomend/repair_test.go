package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/matsen/photomend/internal/config"
	"github.com/matsen/photomend/internal/repair"
	"github.com/matsen/photomend/internal/volume"
)

func TestBuildRules(t *testing.T) {
	tests := []struct {
		name       string
		from, to   string
		flags      []string
		configured []config.RuleConfig
		want       []repair.Rule
		wantErr    bool
	}{
		{
			name: "from and to",
			from: "/Volumes/Old/Photos/",
			to:   "/Volumes/New/Photos",
			want: []repair.Rule{{From: "/Volumes/Old/Photos", To: "/Volumes/New/Photos"}},
		},
		{
			name:       "all sources in order",
			from:       "/Volumes/A",
			to:         "/Volumes/B",
			flags:      []string{"/Users/me/Old=/Users/me/New"},
			configured: []config.RuleConfig{{From: "/Volumes/C", To: "/Volumes/D"}},
			want: []repair.Rule{
				{From: "/Volumes/A", To: "/Volumes/B"},
				{From: "/Users/me/Old", To: "/Users/me/New"},
				{From: "/Volumes/C", To: "/Volumes/D"},
			},
		},
		{
			name: "none",
		},
		{
			name:    "malformed flag",
			flags:   []string{"/Volumes/A"},
			wantErr: true,
		},
		{
			name:       "relative config rule",
			configured: []config.RuleConfig{{From: "Old", To: "/Volumes/New"}},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildRules(tt.from, tt.to, tt.flags, tt.configured)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildRules() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("buildRules() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTargetVolume(t *testing.T) {
	tests := []struct {
		to   string
		want volume.Info
	}{
		{
			to:   "/Volumes/Photos 2/Library",
			want: volume.Info{Name: "Photos 2", UUID: "U", MountPoint: "/Volumes/Photos 2"},
		},
		{
			to:   "/Users/me/Pictures",
			want: volume.Info{Name: "Photos 2", UUID: "U", MountPoint: "/", IsRoot: true},
		},
	}

	for _, tt := range tests {
		got := targetVolume("Photos 2", "U", tt.to)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("targetVolume(%q) mismatch (-want +got):\n%s", tt.to, diff)
		}
	}
}
