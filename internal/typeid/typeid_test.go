package typeid

import (
	"strings"
	"testing"
)

func TestNewIDsValidate(t *testing.T) {
	tests := []struct {
		id     string
		prefix string
	}{
		{NewMapID(), PrefixMap},
		{NewSessionID(), PrefixSession},
		{NewClientID(), PrefixClient},
		{NewAssetID(), PrefixAsset},
	}
	for _, tt := range tests {
		if !strings.HasPrefix(tt.id, tt.prefix+"_") {
			t.Errorf("id %q lacks prefix %q", tt.id, tt.prefix)
		}
		if err := Validate(tt.id, tt.prefix); err != nil {
			t.Errorf("Validate(%q): %v", tt.id, err)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	if err := Validate(NewMapID(), PrefixSession); err == nil {
		t.Error("expected prefix mismatch error")
	}
	if err := Validate("not an id", PrefixMap); err == nil {
		t.Error("expected parse error")
	}
}
