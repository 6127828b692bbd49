/*
Package ports defines the driven ports (interfaces) of the Tendril agent.

These interfaces decouple the dispatch core from the automation backend and from
where call recordings are persisted.

# Key Interfaces

  - DriverFactory: opens an automation session from a DriverConfig.
  - Driver / Element: the automation capability a command operates on.
  - RecordSink: append-only storage for replay scripts (file, Redis, memory).
*/
package ports
