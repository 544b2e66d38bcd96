package antispoof

import (
	"context"
	"time"
)

// Sample is one GPS fix as reported by a client device. Everything in it is
// untrusted input.
type Sample struct {
	Lat       float64
	Lng       float64
	Accuracy  float64
	Provider  string
	Mocked    bool
	DeviceID  string
	Timestamp time.Time
}

type Result struct {
	OK     bool
	Reason string
}

// Checker decides whether a GPS sample looks genuine. Implementations may
// call out to device-attestation or velocity-analysis services.
type Checker interface {
	Check(ctx context.Context, sample Sample) Result
}

// MockFlagChecker is the default checker: it trusts the platform's own
// mock-location flag and nothing else.
type MockFlagChecker struct{}

func NewMockFlagChecker() *MockFlagChecker {
	return &MockFlagChecker{}
}

func (c *MockFlagChecker) Check(_ context.Context, sample Sample) Result {
	if sample.Mocked {
		return Result{OK: false, Reason: "mock location flag set"}
	}
	return Result{OK: true}
}
