package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/go-i2p/minthttp/lib/errors"
)

func TestRequired(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid string", "test", false},
		{"empty string", "", true},
		{"whitespace only", "   ", true},
		{"tab only", "\t", true},
		{"valid with spaces", " test ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Required("name", tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("Required() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrRequired) {
				t.Errorf("Required() error should wrap ErrRequired")
			}
		})
	}
}

func TestPort(t *testing.T) {
	tests := []struct {
		name     string
		value    int
		wantErr  bool
		optional bool
	}{
		{"zero", 0, true, false},
		{"min", 1, false, false},
		{"max", 65535, false, false},
		{"too high", 65536, true, false},
		{"negative", -1, true, true},
		{"optional zero", 0, false, true},
		{"optional valid", 8080, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.optional {
				err = OptionalPort("port", tt.value)
			} else {
				err = Port("port", tt.value)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("Port() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrOutOfRange) {
				t.Errorf("Port() error should wrap ErrOutOfRange")
			}
		})
	}
}

func TestHost(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"example.com", false},
		{"127.0.0.1", false},
		{"::1", false},
		{"", true},
		{"example.com:80", true},
		{"exa mple.com", true},
		{"user@example.com", true},
		{"example.com/path", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			if err := Host("host", tt.value); (err != nil) != tt.wantErr {
				t.Errorf("Host(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestHostPort(t *testing.T) {
	if err := HostPort("addr", "127.0.0.1:8080"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := HostPort("addr", "127.0.0.1"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Expected ErrInvalidFormat, got %v", err)
	}
	if err := HostPort("addr", ""); !errors.Is(err, ErrRequired) {
		t.Errorf("Expected ErrRequired, got %v", err)
	}
}

func TestTimeout(t *testing.T) {
	if err := Timeout("read_timeout", 0); err != nil {
		t.Errorf("zero timeout should be valid: %v", err)
	}
	if err := Timeout("read_timeout", time.Second); err != nil {
		t.Errorf("positive timeout should be valid: %v", err)
	}
	if err := Timeout("read_timeout", -time.Second); err == nil {
		t.Error("negative timeout should be invalid")
	}
}

func TestHeaders(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		value    string
		nameErr  bool
		valueErr bool
	}{
		{"plain", "X-Trace", "abc", false, false},
		{"empty value", "Accept", "", false, false},
		{"space in name", "X Trace", "abc", true, false},
		{"colon in name", "X:Trace", "abc", true, false},
		{"empty name", "", "abc", true, false},
		{"CRLF injection", "X-Trace", "abc\r\nSet-Cookie: a=b", false, true},
		{"tab allowed", "X-Trace", "a\tb", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := HeaderName("header", tt.header); (err != nil) != tt.nameErr {
				t.Errorf("HeaderName(%q) error = %v, wantErr %v", tt.header, err, tt.nameErr)
			}
			if err := HeaderValue(tt.header, tt.value); (err != nil) != tt.valueErr {
				t.Errorf("HeaderValue(%q) error = %v, wantErr %v", tt.value, err, tt.valueErr)
			}
		})
	}
}

func TestResultMatchesInvalidArgument(t *testing.T) {
	err := Port("proxy_port", 70000)
	if !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Error("validation errors should match ErrInvalidArgument")
	}

	var result *Result
	if !errors.As(err, &result) || result.Field != "proxy_port" {
		t.Errorf("Expected *Result for proxy_port, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "proxy_port: ") {
		t.Errorf("Expected field prefix, got %q", err.Error())
	}
}

func TestAll(t *testing.T) {
	err := All(
		func() error { return Required("a", "x") },
		func() error { return Port("b", 0) },
		func() error { return Required("c", "") },
	)
	var result *Result
	if !errors.As(err, &result) || result.Field != "b" {
		t.Errorf("Expected first failure for b, got %v", err)
	}

	if err := All(func() error { return nil }); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func TestErrors(t *testing.T) {
	var errs Errors
	errs.Add(nil)
	if errs.HasErrors() || errs.Err() != nil || errs.First() != nil {
		t.Error("empty collection should report no errors")
	}

	errs.Add(Port("a", 0))
	errs.Add(Required("b", ""))

	if !errs.HasErrors() {
		t.Error("expected errors")
	}
	if !strings.HasPrefix(errs.Error(), "multiple validation errors: ") {
		t.Errorf("unexpected message %q", errs.Error())
	}
	if !errors.Is(errs.Err(), ErrRequired) || !errors.Is(errs.Err(), ErrOutOfRange) {
		t.Error("collected errors should be visible to errors.Is")
	}
}
