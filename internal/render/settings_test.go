package render

import (
	"strings"
	"testing"
)

func TestDefaultSettingsValidate(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestSettingsValidateRejectsOutOfSetValues(t *testing.T) {
	s := DefaultSettings()
	s.Output.SampleRate = 22050
	s.Output.BitrateKbps = 100
	s.Quality.Oversampling = Oversampling(9)
	err := s.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"sample rate 22050", "bitrate 100", "oversampling 9"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}

func TestParseQualityEnums(t *testing.T) {
	if v, err := ParseInterpolation("SINC_BEST"); err != nil || v != InterpolationSincBest {
		t.Fatalf("ParseInterpolation: %v %v", v, err)
	}
	if _, err := ParseInterpolation("cubic"); err == nil {
		t.Fatal("expected error for unknown interpolation")
	}
	if v, err := ParseOversampling("4"); err != nil || v != Oversampling4x {
		t.Fatalf("ParseOversampling: %v %v", v, err)
	}
	if v, err := ParseDepth("24bit"); err != nil || v != Depth24 {
		t.Fatalf("ParseDepth: %v %v", v, err)
	}
	if v, err := ParseDepth("32"); err != nil || v != Depth32F {
		t.Fatalf("ParseDepth 32: %v %v", v, err)
	}
}
