package interaction

import (
	"errors"
	"testing"

	"github.com/newtron-network/devapi/pkg/util"
)

func TestLoopbackIntent_Validate(t *testing.T) {
	tests := []struct {
		name   string
		intent LoopbackIntent
		fields []string
	}{
		{"valid", LoopbackIntent{0, "10.0.0.1", "255.255.255.255"}, nil},
		{"max number", LoopbackIntent{MaxLoopbackNumber, "10.0.0.1", "255.255.255.0"}, nil},
		{"negative number", LoopbackIntent{-1, "10.0.0.1", "255.255.255.0"}, []string{FieldLoopbackNumber}},
		{"bad ip", LoopbackIntent{1, "10.0.0", "255.255.255.0"}, []string{FieldIPAddress}},
		{"ipv6", LoopbackIntent{1, "2001:db8::1", "255.255.255.0"}, []string{FieldIPAddress}},
		{"non-contiguous mask", LoopbackIntent{1, "10.0.0.1", "255.0.255.0"}, []string{FieldSubnetMask}},
		{"all bad", LoopbackIntent{-5, "", ""}, []string{FieldLoopbackNumber, FieldIPAddress, FieldSubnetMask}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.intent.Validate()
			if len(tt.fields) == 0 {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}

			var fve *util.FieldValidationError
			if !errors.As(err, &fve) {
				t.Fatalf("Validate() error = %v, want *FieldValidationError", err)
			}
			if len(fve.Fields) != len(tt.fields) {
				t.Errorf("fields = %v, want %v", fve.Fields, tt.fields)
			}
			for _, f := range tt.fields {
				if _, ok := fve.Fields[f]; !ok {
					t.Errorf("missing error for %s", f)
				}
			}
		})
	}
}

func TestParseLoopbackNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", 0, false},
		{"100", 100, false},
		{" 12 ", 12, false},
		{"", 0, true},
		{"x1", 0, true},
		{"-1", 0, true},
		{"2147483648", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLoopbackNumber(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLoopbackNumber(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseLoopbackNumber(%q) = %d, want %d", tt.in, got, tt.want)
		}
		if err != nil && !errors.Is(err, util.ErrValidationFailed) {
			t.Errorf("ParseLoopbackNumber(%q) error %v is not a validation error", tt.in, err)
		}
	}
}
