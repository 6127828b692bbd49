/*
Package registry holds the static table of invocable commands.

Commands are registered once at start-up with their ordered parameter names,
documentation and handler, then the registry is sealed. Lookup is by exact,
case-sensitive name; Describe provides the introspection view served to remote
callers.
*/
package registry
