package render

import "testing"

func TestFormatFromExtension(t *testing.T) {
	cases := map[string]Format{
		".wav":  FormatWAV,
		"WAV":   FormatWAV,
		".Ogg":  FormatOGG,
		"mp3":   FormatMP3,
		".flac": FormatFLAC,
		".aiff": FormatNone,
		"":      FormatNone,
	}
	for ext, want := range cases {
		if got := FormatFromExtension(ext); got != want {
			t.Errorf("FormatFromExtension(%q) = %s, want %s", ext, got, want)
		}
	}
}

func TestFormatFromPath(t *testing.T) {
	if got := FormatFromPath("/tmp/My Song.FLAC"); got != FormatFLAC {
		t.Fatalf("expected flac, got %s", got)
	}
	if got := FormatFromPath("/tmp/stems"); got != FormatNone {
		t.Fatalf("expected none for path without extension, got %s", got)
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("ogg") != FormatOGG || ParseFormat(".mp3") != FormatMP3 || ParseFormat("bogus") != FormatNone {
		t.Fatal("unexpected ParseFormat result")
	}
}

func TestFormatNoneSentinel(t *testing.T) {
	var f Format
	if f != FormatNone || f.Valid() {
		t.Fatal("expected zero format to be the invalid sentinel")
	}
	if f.Extension() != "" {
		t.Fatalf("expected empty extension, got %q", f.Extension())
	}
	for _, format := range Formats() {
		if !format.Valid() || format.Extension()[0] != '.' {
			t.Fatalf("format %s has bad table entry", format)
		}
	}
}
