// Package dispatch turns raw request envelopes into command invocations.
//
// The Dispatcher is total: every input, including malformed JSON and
// handler panics, yields exactly one response envelope. A call flows through
// decode, resolve, bind, invoke, then the implicit value pipe and the
// recorder, in that order.
package dispatch
