package main

import "testing"

func TestHistoryLength(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		model     int
		want      int
		wantErr   bool
	}{
		{"default to model", 0, 2, 2, false},
		{"negative means default", -1, 3, 3, false},
		{"matching", 2, 2, 2, false},
		{"longer than model", 4, 2, 0, true},
		{"shorter than model", 1, 2, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := historyLength(tt.requested, tt.model)
			if (err != nil) != tt.wantErr {
				t.Fatalf("historyLength(%d, %d) error = %v, wantErr %v", tt.requested, tt.model, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("historyLength(%d, %d) = %d, want %d", tt.requested, tt.model, got, tt.want)
			}
		})
	}
}
