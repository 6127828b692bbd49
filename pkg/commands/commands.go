package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/aretw0/tendril/pkg/registry"
	"github.com/aretw0/tendril/pkg/session"
)

// Result strings.
const (
	ResultSuccess        = "success"
	ResultAllStopped     = "All drivers stopped and entries cleared."
	ResultSentKeys       = "sent keys"
	ResultExists         = "exists"
	ResultDoesNotExist   = "doesn't exists"
	ResultClicked        = "clicked successfully"
	ResultPressedAndHeld = "pressed and held"
	ResultWentBack       = "went back"
	ResultBackground     = "app in background"
	ResultActivated      = "app activated"
)

const (
	defaultWait = 5.0
	defaultHold = 1.0
)

// Deps are the collaborators the command handlers use.
type Deps struct {
	Sessions *session.Registry
	Factory  ports.DriverFactory
	Driver   domain.DriverConfig
	Logger   *slog.Logger
}

type handlers struct {
	Deps
}

// Register adds the automation commands to reg.
func Register(reg *registry.Registry, deps Deps) error {
	if deps.Sessions == nil || deps.Factory == nil {
		return fmt.Errorf("commands need a session registry and a driver factory")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	h := &handlers{deps}

	locator := []registry.Param{{Name: "locator_type"}, {Name: "locator"}}
	with := func(extra ...registry.Param) []registry.Param {
		return append(append([]registry.Param(nil), locator...), extra...)
	}

	for _, cmd := range []registry.Command{
		{
			Name:    "create_driver",
			Doc:     "Creates the driver the automation needs before any other command. Takes no arguments and returns \"success\".",
			Handler: h.createDriver,
		},
		{
			Name:    "stop_driver",
			Doc:     "Stops the session's driver so another one can take its place. Run it at the end of every test case. Returns \"success\".",
			Handler: h.stopDriver,
		},
		{
			Name:       "stop_all_drivers",
			Doc:        "Stops every driver running in this agent and clears all sessions.",
			Handler:    h.stopAllDrivers,
			Unrecorded: true,
		},
		{
			Name:     "send_keys",
			Params:   with(registry.Param{Name: "value", Optional: true, Piped: true}),
			Doc:      "Types value into the element identified by locator_type (id, css, xpath, ...) and locator. When value is omitted the last produced value is typed.",
			Handler:  h.sendKeys,
			Produces: true,
		},
		{
			Name:    "exists",
			Params:  with(registry.Param{Name: "timeout", Optional: true, Default: defaultWait}),
			Doc:     "Checks that the element identified by locator_type and locator becomes visible within timeout seconds.",
			Handler: h.exists,
		},
		{
			Name:    "does_not_exist",
			Params:  with(registry.Param{Name: "timeout", Optional: true, Default: defaultWait}),
			Doc:     "Checks that the element identified by locator_type and locator is absent or hidden within timeout seconds.",
			Handler: h.doesNotExist,
		},
		{
			Name:    "click",
			Params:  with(),
			Doc:     "Clicks or taps the element identified by locator_type (id, css, xpath, ...) and locator.",
			Handler: h.click,
		},
		{
			Name:    "press_hold",
			Params:  with(registry.Param{Name: "duration", Optional: true, Default: defaultHold}),
			Doc:     "Presses and holds the element identified by locator_type and locator for duration seconds.",
			Handler: h.pressHold,
		},
		{
			Name:     "get_attribute",
			Params:   with(registry.Param{Name: "name"}),
			Doc:      "Returns the named attribute of the element identified by locator_type and locator. The value feeds the next command that omits its value.",
			Handler:  h.getAttribute,
			Produces: true,
		},
		{
			Name:       "get_page",
			Doc:        "Returns the page or screen source with script, style and svg blocks removed, so elements can be located for exists, click or send_keys.",
			Handler:    h.getPage,
			Produces:   true,
			Unrecorded: true,
		},
		{
			Name:    "go_back",
			Doc:     "Navigates back.",
			Handler: h.goBack,
		},
		{
			Name:    "send_app_background",
			Params:  []registry.Param{{Name: "duration", Optional: true, Default: -1.0}},
			Doc:     "Sends the app to the background for duration seconds. A negative duration leaves it there.",
			Handler: h.sendAppBackground,
		},
		{
			Name:    "activate_app",
			Params:  []registry.Param{{Name: "app_id"}},
			Doc:     "Brings the app identified by app_id (package name or bundle id) to the foreground.",
			Handler: h.activateApp,
		},
	} {
		if err := reg.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// New returns a sealed registry holding the automation commands.
func New(deps Deps) (*registry.Registry, error) {
	reg := registry.New()
	if err := Register(reg, deps); err != nil {
		return nil, err
	}
	reg.Seal()
	return reg, nil
}

func driverErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrDriverOperationFailed, op, err)
}

func (h *handlers) createDriver(ctx context.Context, call *registry.Call) (any, error) {
	id := call.SessionID
	if h.Sessions.Has(id) {
		return nil, fmt.Errorf("%w: session %q already has a driver", domain.ErrSessionConflict, id)
	}

	drv, err := h.Factory.NewDriver(ctx, h.Driver)
	if err != nil {
		return nil, driverErr("create driver", err)
	}
	if err := h.Sessions.Create(id, drv); err != nil {
		// Lost a race with another create for the same session.
		if qerr := drv.Quit(ctx); qerr != nil {
			h.Logger.Warn("discarding duplicate driver", "session", id, "error", qerr)
		}
		return nil, err
	}
	h.Logger.Info("driver created", "session", id, "kind", h.Driver.Kind)
	return ResultSuccess, nil
}

func (h *handlers) stopDriver(ctx context.Context, call *registry.Call) (any, error) {
	td, err := h.Sessions.Close(ctx, call.SessionID)
	if err != nil {
		return nil, err
	}
	h.Logger.Info("driver stopped", "session", td.ID, "clean", td.Err == nil)
	return ResultSuccess, nil
}

func (h *handlers) stopAllDrivers(ctx context.Context, call *registry.Call) (any, error) {
	report := h.Sessions.CloseAll(ctx)
	h.Logger.Info("all drivers stopped", "closed", len(report.Closed), "failures", len(report.Failures))
	return ResultAllStopped, nil
}

// locator is the element address shared by every element command.
type locator struct {
	Type  string `mapstructure:"locator_type"`
	Value string `mapstructure:"locator"`
}

// element runs fn against the element named by the call's locator arguments.
func (h *handlers) element(ctx context.Context, call *registry.Call, op string, fn func(ports.Element) error) error {
	var loc locator
	if err := call.Decode(&loc); err != nil {
		return err
	}
	return h.Sessions.With(ctx, call.SessionID, func(ctx context.Context, drv ports.Driver) error {
		if err := fn(drv.Locate(loc.Type, loc.Value)); err != nil {
			return driverErr(fmt.Sprintf("%s %s=%q", op, loc.Type, loc.Value), err)
		}
		return nil
	})
}

func (h *handlers) sendKeys(ctx context.Context, call *registry.Call) (any, error) {
	value := call.String("value")
	err := h.element(ctx, call, "send_keys", func(el ports.Element) error {
		if err := el.Clear(ctx); err != nil {
			return err
		}
		return el.SendKeys(ctx, value)
	})
	if err != nil {
		return nil, err
	}
	call.Yield(value)
	return ResultSentKeys, nil
}

func (h *handlers) exists(ctx context.Context, call *registry.Call) (any, error) {
	timeout, err := call.Seconds("timeout")
	if err != nil {
		return nil, err
	}
	err = h.element(ctx, call, "exists", func(el ports.Element) error {
		return el.WaitVisible(ctx, timeout)
	})
	if err != nil {
		return nil, err
	}
	return ResultExists, nil
}

func (h *handlers) doesNotExist(ctx context.Context, call *registry.Call) (any, error) {
	timeout, err := call.Seconds("timeout")
	if err != nil {
		return nil, err
	}
	err = h.element(ctx, call, "does_not_exist", func(el ports.Element) error {
		return el.WaitAbsent(ctx, timeout)
	})
	if err != nil {
		return nil, err
	}
	return ResultDoesNotExist, nil
}

func (h *handlers) click(ctx context.Context, call *registry.Call) (any, error) {
	err := h.element(ctx, call, "click", func(el ports.Element) error {
		return el.Click(ctx)
	})
	if err != nil {
		return nil, err
	}
	return ResultClicked, nil
}

func (h *handlers) pressHold(ctx context.Context, call *registry.Call) (any, error) {
	d, err := call.Seconds("duration")
	if err != nil {
		return nil, err
	}
	err = h.element(ctx, call, "press_hold", func(el ports.Element) error {
		return el.PressHold(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	return ResultPressedAndHeld, nil
}

func (h *handlers) getAttribute(ctx context.Context, call *registry.Call) (any, error) {
	var value string
	name := call.String("name")
	err := h.element(ctx, call, "get_attribute "+name, func(el ports.Element) error {
		v, err := el.Attribute(ctx, name)
		value = v
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (h *handlers) getPage(ctx context.Context, call *registry.Call) (any, error) {
	var src string
	err := h.Sessions.With(ctx, call.SessionID, func(ctx context.Context, drv ports.Driver) error {
		s, err := drv.PageSource(ctx)
		if err != nil {
			return driverErr("page source", err)
		}
		src = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return CleanHTML(src), nil
}

func (h *handlers) goBack(ctx context.Context, call *registry.Call) (any, error) {
	err := h.Sessions.With(ctx, call.SessionID, func(ctx context.Context, drv ports.Driver) error {
		if err := drv.Back(ctx); err != nil {
			return driverErr("back", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ResultWentBack, nil
}

func (h *handlers) sendAppBackground(ctx context.Context, call *registry.Call) (any, error) {
	d, err := call.Seconds("duration")
	if err != nil {
		return nil, err
	}
	if d < 0 {
		d = -time.Second
	}
	err = h.Sessions.With(ctx, call.SessionID, func(ctx context.Context, drv ports.Driver) error {
		if err := drv.BackgroundApp(ctx, d); err != nil {
			return driverErr("background app", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ResultBackground, nil
}

func (h *handlers) activateApp(ctx context.Context, call *registry.Call) (any, error) {
	appID := call.String("app_id")
	err := h.Sessions.With(ctx, call.SessionID, func(ctx context.Context, drv ports.Driver) error {
		if err := drv.ActivateApp(ctx, appID); err != nil {
			return driverErr("activate app", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ResultActivated, nil
}
