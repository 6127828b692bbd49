package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
)

var (
	// ErrNoSuchElement is returned when a locator matches nothing on the screen.
	ErrNoSuchElement = errors.New("no such element")

	// ErrTimeout is returned when a wait elapses.
	ErrTimeout = errors.New("timed out waiting for element")

	// ErrQuit is returned by any operation on a driver after Quit.
	ErrQuit = errors.New("driver has quit")
)

// pollInterval is how often waits re-check the screen.
const pollInterval = 10 * time.Millisecond

// Widget is one element on a scripted screen.
type Widget struct {
	Text       string
	Hidden     bool
	Attributes map[string]string
	Clicks     int
	Holds      []time.Duration
}

// Driver is a scripted, in-process automation driver for tests and dry runs.
// It records every operation in Log.
type Driver struct {
	mu      sync.Mutex
	widgets map[string]*Widget
	page    string
	log     []string
	quit    bool
	quitErr error
	lenient bool
}

// NewDriver creates an empty screen.
func NewDriver() *Driver {
	return &Driver{widgets: make(map[string]*Widget)}
}

func key(locatorType, locator string) string {
	return locatorType + "=" + locator
}

// Put places (or replaces) a widget on the screen.
func (d *Driver) Put(locatorType, locator string, w *Widget) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w.Attributes == nil {
		w.Attributes = make(map[string]string)
	}
	d.widgets[key(locatorType, locator)] = w
}

// Remove takes a widget off the screen.
func (d *Driver) Remove(locatorType, locator string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.widgets, key(locatorType, locator))
}

// Widget returns the widget at locator, or nil.
func (d *Driver) Widget(locatorType, locator string) *Widget {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.widgets[key(locatorType, locator)]
}

// SetPage sets the page source returned by PageSource.
func (d *Driver) SetPage(src string) {
	d.mu.Lock()
	d.page = src
	d.mu.Unlock()
}

// SetLenient makes unknown locators resolve to a new empty widget instead
// of failing. Dry runs use it to accept any command sequence.
func (d *Driver) SetLenient(on bool) {
	d.mu.Lock()
	d.lenient = on
	d.mu.Unlock()
}

// lookup returns the widget at k. It must be called with d.mu held.
func (d *Driver) lookup(k string) *Widget {
	w, ok := d.widgets[k]
	if !ok && d.lenient {
		w = &Widget{Attributes: make(map[string]string)}
		d.widgets[k] = w
	}
	return w
}

// FailQuit makes Quit return err.
func (d *Driver) FailQuit(err error) {
	d.mu.Lock()
	d.quitErr = err
	d.mu.Unlock()
}

// Log returns the operations performed so far.
func (d *Driver) Log() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.log...)
}

// Quitted reports whether Quit was called.
func (d *Driver) Quitted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quit
}

func (d *Driver) logf(format string, args ...any) error {
	d.log = append(d.log, fmt.Sprintf(format, args...))
	if d.quit {
		return ErrQuit
	}
	return nil
}

// Locate implements ports.Driver.
func (d *Driver) Locate(locatorType, locator string) ports.Element {
	return &element{d: d, locatorType: locatorType, locator: locator}
}

// PageSource implements ports.Driver.
func (d *Driver) PageSource(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.logf("page_source"); err != nil {
		return "", err
	}
	return d.page, nil
}

// Back implements ports.Driver.
func (d *Driver) Back(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logf("back")
}

// BackgroundApp implements ports.Driver.
func (d *Driver) BackgroundApp(ctx context.Context, dur time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logf("background %s", dur)
}

// ActivateApp implements ports.Driver.
func (d *Driver) ActivateApp(ctx context.Context, appID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.logf("activate %s", appID)
}

// Quit implements ports.Driver.
func (d *Driver) Quit(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.logf("quit"); err != nil {
		return err
	}
	d.quit = true
	return d.quitErr
}

type element struct {
	d           *Driver
	locatorType string
	locator     string
}

// find resolves the widget and logs op. It must be called with d.mu held.
func (e *element) find(op string) (*Widget, error) {
	if err := e.d.logf("%s %s", op, key(e.locatorType, e.locator)); err != nil {
		return nil, err
	}
	w := e.d.lookup(key(e.locatorType, e.locator))
	if w == nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrNoSuchElement, e.locatorType, e.locator)
	}
	return w, nil
}

func (e *element) Click(ctx context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	w, err := e.find("click")
	if err != nil {
		return err
	}
	w.Clicks++
	return nil
}

func (e *element) Clear(ctx context.Context) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	w, err := e.find("clear")
	if err != nil {
		return err
	}
	w.Text = ""
	return nil
}

func (e *element) SendKeys(ctx context.Context, value string) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	w, err := e.find("send_keys")
	if err != nil {
		return err
	}
	w.Text += value
	return nil
}

func (e *element) PressHold(ctx context.Context, dur time.Duration) error {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	w, err := e.find("press_hold")
	if err != nil {
		return err
	}
	w.Holds = append(w.Holds, dur)
	return nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, error) {
	e.d.mu.Lock()
	defer e.d.mu.Unlock()
	w, err := e.find("attribute " + name)
	if err != nil {
		return "", err
	}
	if name == "text" {
		if v, ok := w.Attributes[name]; ok {
			return v, nil
		}
		return w.Text, nil
	}
	return w.Attributes[name], nil
}

func (e *element) WaitVisible(ctx context.Context, timeout time.Duration) error {
	return e.wait(ctx, timeout, func(w *Widget) bool { return w != nil && !w.Hidden })
}

func (e *element) WaitAbsent(ctx context.Context, timeout time.Duration) error {
	return e.wait(ctx, timeout, func(w *Widget) bool { return w == nil || w.Hidden })
}

func (e *element) wait(ctx context.Context, timeout time.Duration, done func(*Widget) bool) error {
	deadline := time.Now().Add(timeout)
	for {
		e.d.mu.Lock()
		if e.d.quit {
			e.d.mu.Unlock()
			return ErrQuit
		}
		ok := done(e.d.lookup(key(e.locatorType, e.locator)))
		e.d.mu.Unlock()
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s=%q after %s", ErrTimeout, e.locatorType, e.locator, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Factory opens scripted drivers. Setup, if set, prepares every new screen.
type Factory struct {
	Setup func(*Driver)

	mu      sync.Mutex
	drivers []*Driver
	fail    error
}

// NewFactory creates a factory that prepares each driver with setup.
func NewFactory(setup func(*Driver)) *Factory {
	return &Factory{Setup: setup}
}

// Fail makes subsequent NewDriver calls return err. Pass nil to recover.
func (f *Factory) Fail(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

// NewDriver implements ports.DriverFactory.
func (f *Factory) NewDriver(ctx context.Context, cfg domain.DriverConfig) (ports.Driver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	d := NewDriver()
	if f.Setup != nil {
		f.Setup(d)
	}
	f.drivers = append(f.drivers, d)
	return d, nil
}

// Drivers returns every driver opened so far, oldest first.
func (f *Factory) Drivers() []*Driver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Driver(nil), f.drivers...)
}

// Last returns the most recently opened driver, or nil.
func (f *Factory) Last() *Driver {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.drivers) == 0 {
		return nil
	}
	return f.drivers[len(f.drivers)-1]
}
