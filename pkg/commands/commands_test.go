package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/commands"
	"github.com/aretw0/tendril/pkg/dispatch"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*dispatch.Dispatcher, *memory.Factory, *session.Registry) {
	t.Helper()
	factory := memory.NewFactory(func(d *memory.Driver) {
		d.Put("id", "button", &memory.Widget{Attributes: map[string]string{"text": "Login"}})
	})
	sessions := session.NewRegistry()
	reg, err := commands.New(commands.Deps{Sessions: sessions, Factory: factory})
	require.NoError(t, err)
	return dispatch.New(reg), factory, sessions
}

func do(d *dispatch.Dispatcher, fn string, kwargs map[string]any) domain.Response {
	return d.Do(context.Background(), domain.Request{Function: fn, Kwargs: kwargs})
}

var button = map[string]any{"locator_type": "id", "locator": "button"}

func TestCommands_Results(t *testing.T) {
	d, factory, _ := setup(t)
	require.Equal(t, "success", do(d, "create_driver", nil).Result)

	cases := []struct {
		fn     string
		kwargs map[string]any
		want   any
	}{
		{"exists", button, commands.ResultExists},
		{"click", button, commands.ResultClicked},
		{"press_hold", map[string]any{"locator_type": "id", "locator": "button", "duration": 0.5}, commands.ResultPressedAndHeld},
		{"get_attribute", map[string]any{"locator_type": "id", "locator": "button", "name": "text"}, "Login"},
		{"does_not_exist", map[string]any{"locator_type": "id", "locator": "spinner", "timeout": 0}, commands.ResultDoesNotExist},
		{"go_back", nil, commands.ResultWentBack},
		{"send_app_background", nil, commands.ResultBackground},
		{"activate_app", map[string]any{"app_id": "com.example.app"}, commands.ResultActivated},
	}
	for _, tc := range cases {
		t.Run(tc.fn, func(t *testing.T) {
			resp := do(d, tc.fn, tc.kwargs)
			require.True(t, resp.OK(), resp.Error)
			assert.Equal(t, tc.want, resp.Result)
		})
	}

	drv := factory.Last()
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, drv.Widget("id", "button").Holds)
	assert.Contains(t, drv.Log(), "background -1s")
	assert.Contains(t, drv.Log(), "activate com.example.app")
}

func TestCommands_ExistsTimesOut(t *testing.T) {
	d, _, _ := setup(t)
	require.True(t, do(d, "create_driver", nil).OK())

	resp := do(d, "exists", map[string]any{"locator_type": "id", "locator": "ghost", "timeout": 0.05})
	assert.False(t, resp.OK())
	assert.Contains(t, resp.Error, "DriverOperationFailed")
	assert.Contains(t, resp.Error, "ghost")

	resp = do(d, "exists", map[string]any{"locator_type": "id", "locator": "ghost", "timeout": "soon"})
	assert.Contains(t, resp.Error, "InvalidArguments")
}

func TestCommands_GetPageCleansSource(t *testing.T) {
	d, factory, _ := setup(t)
	require.True(t, do(d, "create_driver", nil).OK())
	factory.Last().SetPage(`<body><style>p{}</style><p>ok</p><svg width="1"><path/></svg></body>`)

	resp := do(d, "get_page", nil)
	require.True(t, resp.OK())
	assert.Equal(t, "<body><p>ok</p></body>", resp.Result)
}

func TestCommands_DriverLifecycle(t *testing.T) {
	d, factory, sessions := setup(t)

	assert.Contains(t, do(d, "stop_driver", nil).Error, "SessionNotFound")

	require.True(t, do(d, "create_driver", nil).OK())
	require.True(t, do(d, "create_driver", map[string]any{domain.SessionParam: "2"}).OK())
	assert.Contains(t, do(d, "create_driver", nil).Error, "SessionConflict")
	assert.Len(t, factory.Drivers(), 2, "a conflicting create does not open a driver")

	require.Equal(t, "success", do(d, "stop_driver", nil).Result)
	assert.True(t, factory.Drivers()[0].Quitted())
	require.True(t, do(d, "create_driver", nil).OK(), "a stopped session can be recreated")

	factory.Last().FailQuit(errors.New("appium gone"))
	resp := do(d, "stop_all_drivers", nil)
	assert.Equal(t, commands.ResultAllStopped, resp.Result)
	assert.Zero(t, sessions.Len())
}

func TestCommands_CreateDriverFailure(t *testing.T) {
	d, factory, sessions := setup(t)
	factory.Fail(errors.New("connection refused"))

	resp := do(d, "create_driver", nil)
	assert.Equal(t, "DriverOperationFailed: create driver: connection refused", resp.Error)
	assert.Zero(t, sessions.Len())
}

func TestCleanHTML(t *testing.T) {
	src := "<div><script type=\"x\">\nalert(1)\n</script>a<STYLE>b</STYLE></div>"
	assert.Equal(t, "<div>a<STYLE>b</STYLE></div>", commands.CleanHTML(src))
}

func TestRegister_RequiresDeps(t *testing.T) {
	_, err := commands.New(commands.Deps{})
	assert.Error(t, err)
}
