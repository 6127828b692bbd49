package ports

import (
	"context"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
)

// DriverFactory constructs automation driver handles.
type DriverFactory interface {
	// NewDriver opens a new automation session. The returned Driver is owned
	// exclusively by the caller, who must call Quit to release it.
	NewDriver(ctx context.Context, cfg domain.DriverConfig) (Driver, error)
}

// DriverFactoryFunc adapts a function to DriverFactory.
type DriverFactoryFunc func(ctx context.Context, cfg domain.DriverConfig) (Driver, error)

// NewDriver calls f.
func (f DriverFactoryFunc) NewDriver(ctx context.Context, cfg domain.DriverConfig) (Driver, error) {
	return f(ctx, cfg)
}

// Driver is an open automation session. It is not safe for concurrent use;
// the session registry serializes access per session.
type Driver interface {
	// Locate returns a lazy handle to the element matched by locatorType/locator.
	// Resolution happens when the element is first acted upon.
	Locate(locatorType, locator string) Element

	// PageSource returns the current page or screen markup.
	PageSource(ctx context.Context) (string, error)

	// Back navigates back.
	Back(ctx context.Context) error

	// BackgroundApp sends the app under test to the background for d.
	// A negative duration leaves it in the background.
	BackgroundApp(ctx context.Context, d time.Duration) error

	// ActivateApp brings the app identified by appID to the foreground.
	ActivateApp(ctx context.Context, appID string) error

	// Quit ends the automation session.
	Quit(ctx context.Context) error
}

// Element is a located (or locatable) UI element.
type Element interface {
	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, value string) error
	PressHold(ctx context.Context, d time.Duration) error
	Attribute(ctx context.Context, name string) (string, error)

	// WaitVisible blocks until the element is displayed or timeout elapses.
	WaitVisible(ctx context.Context, timeout time.Duration) error

	// WaitAbsent blocks until the element is gone or hidden, or timeout elapses.
	WaitAbsent(ctx context.Context, timeout time.Duration) error
}
