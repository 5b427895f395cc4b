package formats

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"gvc", []byte("GVCF\x01\x00"), FormatGVC},
		{"rsm", []byte("GRSM\x01\x05"), FormatRSM},
		{"short", []byte("GV"), FormatUnknown},
		{"other", []byte("Master of Magic"), FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.data); got != tt.want {
				t.Errorf("Detect = %s, want %s", got, tt.want)
			}
		})
	}
}
