/*
Package observability exposes agent activity as Prometheus metrics.

Metrics are fed from the dispatcher's lifecycle hooks, the session registry's
change callback and the transport's state hook, so the core packages never
import Prometheus themselves.
*/
package observability
