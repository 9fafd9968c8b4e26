package tradeerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestTransientMatchesSentinel(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("fetch account: %w", Transient("get account", cause))

	if !errors.Is(err, ErrTransientIO) {
		t.Fatalf("expected transient match, got %v", err)
	}
	if errors.Is(err, ErrInvariant) {
		t.Fatalf("transient error must not match invariant")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if KindOf(err) != KindTransientIO {
		t.Fatalf("expected kind %s, got %s", KindTransientIO, KindOf(err))
	}
}

func TestTransientNil(t *testing.T) {
	if Transient("noop", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}

func TestConfigAndInvariantKinds(t *testing.T) {
	if !errors.Is(Configf("total weight %v", 0), ErrConfiguration) {
		t.Fatalf("expected configuration kind")
	}
	err := Invariantf("close position", "no stored position for %s", "BTC-USD")
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant kind")
	}
	if err.Error() != "close position: no stored position for BTC-USD" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty kind for unclassified error")
	}
}
