/*
Package domain contains the core data model of the Tendril agent.

It defines the wire envelopes exchanged with the backend, the error taxonomy
surfaced to remote callers, the recording entries that make up a replay script,
and the deployment configuration handed to driver factories. The package is kept
free of I/O and persistence concerns.

# Key Entities

  - Request / Response: the JSON envelopes carried by every transport.
  - MethodInfo: the introspection view of a registered command.
  - Record: one executed call with its literal, resolved arguments.
  - DriverConfig: what a DriverFactory needs to open an automation session.
*/
package domain
