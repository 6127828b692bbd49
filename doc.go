/*
Package tendril is a remote command-execution agent for device automation.

The agent opens an outbound WebSocket to a backend and answers named operation
requests against a registry of automation commands. Each request addresses a
driver session, so one agent can steer several devices at once.

# Concepts

  - Commands: a static table of operations (create_driver, click, send_keys...)
    with ordered parameters and documentation, discoverable through
    list_available_methods.
  - Sessions: driver handles keyed by the _run_test_id argument (default "1").
  - Pipe: the value produced by the last command (an attribute, the typed text
    or the page source) fills piped parameters that a later command omits.
  - Recording: every successful recordable call is appended to a replay script
    that can be run again with the same results.

# Wire protocol

	request:  {"function": "click", "args": ["id", "login"], "kwargs": {"_run_test_id": "7"}}
	success:  {"status": "success", "result": "clicked successfully"}
	failure:  {"status": "error", "error": "SessionNotFound: no active driver for session \"7\""}

# Usage

	agent, err := tendril.New(
		tendril.WithDriverFactory(webdriver.NewFactory()),
		tendril.WithDriverConfig(domain.DriverConfig{URL: "http://127.0.0.1:4723"}),
		tendril.WithRecordSinks(file.NewSink("tests")),
	)
	if err != nil {
		log.Fatal(err)
	}
	client := agent.NewClient("wss://backend.example/ws/agent-1")
	_ = agent.Connect(ctx, client)
*/
package tendril
