package validation

import "testing"

func TestValidateCameraID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"barn-cam-1", false},
		{"stall_a.north", false},
		{"", true},
		{"bad id", true},
		{"../../etc", true},
	}

	for _, tt := range tests {
		if err := ValidateCameraID(tt.id); (err != nil) != tt.wantErr {
			t.Errorf("ValidateCameraID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://localhost:1984", false},
		{"https://api.example.com/api", false},
		{"ftp://example.com", true},
		{"http://", true},
		{"", true},
	}

	for _, tt := range tests {
		if err := ValidateURL(tt.url); (err != nil) != tt.wantErr {
			t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestValidateResolution(t *testing.T) {
	for _, ok := range []string{"640x360", "1280x720", "1920x1080"} {
		if err := ValidateResolution(ok); err != nil {
			t.Errorf("ValidateResolution(%q) unexpected error: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "720p", "0x0", "1280X720", "12x7"} {
		if err := ValidateResolution(bad); err == nil {
			t.Errorf("ValidateResolution(%q) expected error", bad)
		}
	}
}

func TestValidateNumericRanges(t *testing.T) {
	if err := ValidateBitrate(1500); err != nil {
		t.Errorf("ValidateBitrate(1500) unexpected error: %v", err)
	}
	if err := ValidateBitrate(50); err == nil {
		t.Error("ValidateBitrate(50) expected error")
	}
	if err := ValidateFrameRate(30); err != nil {
		t.Errorf("ValidateFrameRate(30) unexpected error: %v", err)
	}
	if err := ValidateFrameRate(0); err == nil {
		t.Error("ValidateFrameRate(0) expected error")
	}
	if err := ValidateMotionSensitivity(101); err == nil {
		t.Error("ValidateMotionSensitivity(101) expected error")
	}
}

func TestValidateQuality(t *testing.T) {
	for _, q := range []string{"low", "medium", "high", "auto"} {
		if err := ValidateQuality(q); err != nil {
			t.Errorf("ValidateQuality(%q) unexpected error: %v", q, err)
		}
	}
	if err := ValidateQuality("ultra"); err == nil {
		t.Error("ValidateQuality(ultra) expected error")
	}
}

func TestValidateStringLength(t *testing.T) {
	if err := ValidateStringLength("Stall A", 1, 64, "name"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateStringLength("   ", 1, 64, "name"); err == nil {
		t.Error("expected error for blank name")
	}
}
