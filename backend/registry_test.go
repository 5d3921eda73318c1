package backend

import (
	"errors"
	"testing"
)

// stubContext is a minimal Context for registry tests.
type stubContext struct {
	Context
	name string
}

func (s *stubContext) Name() string { return s.name }

func register(t *testing.T, name string) {
	t.Helper()
	Register(name, func() Context { return &stubContext{name: name} })
	t.Cleanup(func() { Unregister(name) })
}

func TestRegisterAndGet(t *testing.T) {
	register(t, "test-stub")

	if !IsRegistered("test-stub") {
		t.Error("backend not registered")
	}
	c := Get("test-stub")
	if c == nil {
		t.Fatal("Get returned nil")
	}
	if c.Name() != "test-stub" {
		t.Errorf("Name = %q, want %q", c.Name(), "test-stub")
	}
}

func TestGetUnknown(t *testing.T) {
	if c := Get("no-such-backend"); c != nil {
		t.Errorf("Get for unknown backend = %v, want nil", c)
	}
}

func TestUnregister(t *testing.T) {
	register(t, "test-temp")
	Unregister("test-temp")
	if IsRegistered("test-temp") {
		t.Error("backend still registered after Unregister")
	}
}

func TestAvailable(t *testing.T) {
	register(t, "test-a")
	register(t, "test-b")

	found := make(map[string]bool)
	for _, name := range Available() {
		found[name] = true
	}
	if !found["test-a"] || !found["test-b"] {
		t.Errorf("Available = %v, want test-a and test-b present", Available())
	}
}

func TestSelect(t *testing.T) {
	register(t, "test-pref")

	c, err := Select("test-pref")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if c.Name() != "test-pref" {
		t.Errorf("Name = %q, want %q", c.Name(), "test-pref")
	}

	if _, err := Select("no-such-backend"); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("err = %v, want ErrBackendNotAvailable", err)
	}
}

func TestBlendModeString(t *testing.T) {
	cases := map[BlendMode]string{
		BlendOpaque:   "Opaque",
		BlendAlpha:    "Alpha",
		BlendAdditive: "Additive",
		BlendMode(99): "Unknown",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("BlendMode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}

func TestDepthModeString(t *testing.T) {
	cases := map[DepthMode]string{
		DepthReadWrite: "ReadWrite",
		DepthReadOnly:  "ReadOnly",
		DepthDisabled:  "Disabled",
		DepthMode(99):  "Unknown",
	}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Errorf("DepthMode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}

func TestOptionsFrameSlots(t *testing.T) {
	if got := (Options{}).FrameSlots(); got != DefaultFramesInFlight {
		t.Errorf("zero Options FrameSlots = %d, want %d", got, DefaultFramesInFlight)
	}
	if got := (Options{FramesInFlight: 3}).FrameSlots(); got != 3 {
		t.Errorf("FrameSlots = %d, want 3", got)
	}
}
