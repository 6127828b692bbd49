// Package commands binds the automation commands to the driver capability.
//
// Results are the short status strings remote planners already expect
// ("sent keys", "clicked successfully", ...).
package commands
