package validation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestConfigValidator_Required(t *testing.T) {
	cv := NewConfigValidator("server")
	cv.Required("tcp_addr", "")
	if !cv.HasErrors() {
		t.Error("Expected error for empty required field")
	}

	cv2 := NewConfigValidator("server")
	cv2.Required("tcp_addr", ":7000")
	if cv2.HasErrors() {
		t.Error("Expected no error for non-empty required field")
	}
}

func TestConfigValidator_Numbers(t *testing.T) {
	tests := []struct {
		name    string
		apply   func(cv *ConfigValidator)
		wantErr bool
	}{
		{"positive ok", func(cv *ConfigValidator) { cv.Positive("workers", 4) }, false},
		{"positive zero", func(cv *ConfigValidator) { cv.Positive("workers", 0) }, true},
		{"non-negative zero", func(cv *ConfigValidator) { cv.NonNegative("limit", 0) }, false},
		{"non-negative below", func(cv *ConfigValidator) { cv.NonNegative("limit", -1) }, true},
		{"range inside", func(cv *ConfigValidator) { cv.RangeInt("bytes", 10, 1, 10) }, false},
		{"range outside", func(cv *ConfigValidator) { cv.RangeInt("bytes", 11, 1, 10) }, true},
		{"at most unbounded", func(cv *ConfigValidator) { cv.AtMost("default_limit", 500, "max_limit", 0) }, false},
		{"at most exceeded", func(cv *ConfigValidator) { cv.AtMost("default_limit", 500, "max_limit", 100) }, true},
		{"min duration", func(cv *ConfigValidator) { cv.MinDuration("read_timeout", time.Millisecond, time.Second) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv := NewConfigValidator("test")
			tt.apply(cv)
			if cv.HasErrors() != tt.wantErr {
				t.Errorf("HasErrors() = %v, want %v (errors: %v)", cv.HasErrors(), tt.wantErr, cv.Errors())
			}
		})
	}
}

func TestConfigValidator_OneOf(t *testing.T) {
	levels := []string{"debug", "info", "warn", "error"}

	if NewConfigValidator("logging").OneOf("level", "info", levels).HasErrors() {
		t.Error("Expected info to be accepted")
	}
	cv := NewConfigValidator("logging").OneOf("level", "loud", levels)
	if !cv.HasErrors() {
		t.Fatal("Expected error for unknown level")
	}
	if !strings.Contains(cv.Validate().Error(), "logging.level") {
		t.Errorf("Error should name the field: %v", cv.Validate())
	}
}

func TestConfigValidator_Address(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{":7000", false},
		{"127.0.0.1:7000", false},
		{"localhost:0", false},
		{"7000", true},
		{"host:port", true},
		{"host:70000", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			cv := NewConfigValidator("server").Address("tcp_addr", tt.addr)
			if cv.HasErrors() != tt.wantErr {
				t.Errorf("Address(%q) errors = %v, want error %v", tt.addr, cv.Errors(), tt.wantErr)
			}
		})
	}
}

func TestConfigValidator_CustomAndWhen(t *testing.T) {
	errBoom := errors.New("boom")

	cv := NewConfigValidator("metrics").
		When(false, func(cv *ConfigValidator) { cv.Required("addr", "") }).
		Custom("addr", func() error { return errBoom })

	if len(cv.Errors()) != 1 {
		t.Fatalf("Expected 1 error, got %d: %v", len(cv.Errors()), cv.Errors())
	}
	if !errors.Is(cv.Validate(), errBoom) {
		t.Errorf("Custom error should be wrapped, got %v", cv.Validate())
	}

	cv.When(true, func(cv *ConfigValidator) { cv.Required("addr", "") })
	if len(cv.Errors()) != 2 {
		t.Fatalf("Expected 2 errors, got %d", len(cv.Errors()))
	}
}

func TestConfigValidator_ValidateJoinsErrors(t *testing.T) {
	if err := NewConfigValidator("query").Validate(); err != nil {
		t.Fatalf("Expected nil, got %v", err)
	}

	errA := errors.New("a")
	errB := errors.New("b")
	err := NewConfigValidator("query").
		Custom("x", func() error { return errA }).
		Custom("y", func() error { return errB }).
		Validate()

	if err == nil {
		t.Fatal("Expected combined error")
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Combined error should wrap every failure: %v", err)
	}
	if !strings.Contains(err.Error(), "2 errors") {
		t.Errorf("Combined error should report the count: %v", err)
	}
}

func TestDefaults(t *testing.T) {
	if got := DefaultOr("", "info"); got != "info" {
		t.Errorf("DefaultOr(\"\") = %q", got)
	}
	if got := DefaultOr(5, 10); got != 5 {
		t.Errorf("DefaultOr(5) = %d", got)
	}
	if got := DefaultOrDuration(0, time.Second); got != time.Second {
		t.Errorf("DefaultOrDuration(0) = %v", got)
	}
	if got := DefaultOrDuration(-time.Second, time.Second); got != time.Second {
		t.Errorf("DefaultOrDuration(-1s) = %v", got)
	}
}
