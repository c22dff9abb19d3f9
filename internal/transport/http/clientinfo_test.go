package http

import (
	"strings"
	"testing"
)

func TestDeviceLabel(t *testing.T) {
	if got := deviceLabel(chromeUA); !strings.HasPrefix(got, "Chrome on Windows") {
		t.Fatalf("unexpected device label %q", got)
	}
	if got := deviceLabel(""); got != unknownDevice {
		t.Fatalf("expected unknown device, got %q", got)
	}
}

func TestBearerToken(t *testing.T) {
	if tok, err := bearerToken("bearer abc"); err != nil || tok != "abc" {
		t.Fatalf("expected case-insensitive scheme, got %q %v", tok, err)
	}
	if _, err := bearerToken("Token abc"); err == nil {
		t.Fatalf("expected scheme rejected")
	}
}
