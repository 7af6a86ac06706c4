package notification

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"testing"
)

func TestDefault_IsValid(t *testing.T) {
	if err := DefaultChannel().Validate(); err != nil {
		t.Errorf("default channel invalid: %v", err)
	}
	n := Default()
	if err := n.Validate(); err != nil {
		t.Errorf("default notification invalid: %v", err)
	}
	if n.ChannelID != DefaultChannel().ID {
		t.Errorf("notification channel %q does not match default channel %q", n.ChannelID, DefaultChannel().ID)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"empty channel id", Channel{Name: "n", Importance: ImportanceDefault}.Validate()},
		{"empty channel name", Channel{ID: "c", Importance: ImportanceDefault}.Validate()},
		{"bad importance", Channel{ID: "c", Name: "n", Importance: 9}.Validate()},
		{"zero id", Notification{ChannelID: "c", Icon: DefaultIcon()}.Validate()},
		{"no channel", Notification{ID: 1, Icon: DefaultIcon()}.Validate()},
		{"no icon", Notification{ID: 1, ChannelID: "c"}.Validate()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", tt.err)
			}
		})
	}
}

func TestIcon_SolidWhiteSquare(t *testing.T) {
	data, err := DefaultIcon().PNG()
	if err != nil {
		t.Fatalf("PNG failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("icon is %dx%d, want 64x64", b.Dx(), b.Dy())
	}
	for _, p := range [][2]int{{0, 0}, {63, 63}, {31, 17}} {
		r, g, bl, a := img.At(p[0], p[1]).RGBA()
		if r != 0xffff || g != 0xffff || bl != 0xffff || a != 0xffff {
			t.Errorf("pixel %v = (%x,%x,%x,%x), want opaque white", p, r, g, bl, a)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#ffffff", color.NRGBA{0xff, 0xff, 0xff, 0xff}, false},
		{"#10203040", color.NRGBA{0x10, 0x20, 0x30, 0x40}, false},
		{"white", color.NRGBA{0xff, 0xff, 0xff, 0xff}, false},
		{"Red", color.NRGBA{0xff, 0x00, 0x00, 0xff}, false},
		{"#fff", color.NRGBA{}, true},
		{"#zzzzzz", color.NRGBA{}, true},
		{"ultraviolet", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("ParseColor(%q) error = %v, want ErrInvalid", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseColor(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseImportance(t *testing.T) {
	if imp, err := ParseImportance(""); err != nil || imp != ImportanceDefault {
		t.Errorf("empty importance = (%v, %v), want default", imp, err)
	}
	if imp, err := ParseImportance("high"); err != nil || imp != ImportanceHigh {
		t.Errorf("high importance = (%v, %v)", imp, err)
	}
	if _, err := ParseImportance("urgent"); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}
