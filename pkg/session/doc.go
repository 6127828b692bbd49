/*
Package session implements the registry of live automation sessions.

Each session ID owns at most one driver handle. The registry serializes use of a
handle through per-session locks (reference counted, so unused locks are garbage
collected) and guarantees that teardown never leaks an entry, even when the
driver fails to quit.
*/
package session
