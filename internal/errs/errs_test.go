package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestE_NilErr(t *testing.T) {
	if err := Persistence("resolver.resolve", nil); err != nil {
		t.Errorf("Persistence(nil) = %v, want nil", err)
	}
}

func TestKindOf(t *testing.T) {
	base := errors.New("connection refused")
	testCases := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("event.validate", base), KindValidation},
		{"persistence", Persistence("ticket.create", base), KindPersistence},
		{"generation", Generation("response.generate", base), KindGeneration},
		{"delivery", Delivery("delivery.send", base), KindDelivery},
		{"bus", Bus("bus.publish", base), KindBus},
		{"wrapped", fmt.Errorf("processor: %w", Persistence("ticket.create", base)), KindPersistence},
		{"plain", base, ""},
		{"nil", nil, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	base := errors.New("timeout")
	err := Generation("response.generate", base)
	if !errors.Is(err, base) {
		t.Error("errors.Is should see the wrapped error")
	}
	if !Is(err, KindGeneration) {
		t.Error("Is(KindGeneration) should be true")
	}
	if Is(err, KindBus) {
		t.Error("Is(KindBus) should be false")
	}
	want := "response.generate: generation error: timeout"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
