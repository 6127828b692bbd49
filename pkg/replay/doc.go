// Package replay renders recorded calls as a plain replay script and plays
// such scripts back.
//
// A script holds one statement per line:
//
//	driver.create_driver()
//	driver.send_keys(locator_type="id", locator="username", value="alice")
//	driver.click(locator_type="xpath", locator="//button[@text=\"Login\"]")
//
// Argument values are JSON literals, so strings are double-quoted with JSON
// escaping. Blank lines and lines starting with '#' are ignored.
package replay
