// Package channel keeps per-channel callback lists on top of an inter-process
// message transport.
//
// A registry attaches exactly one transport listener per named channel while
// at least one callback is registered, fans every delivery out to the
// callbacks in registration order, and detaches the listener once the last
// callback is removed. Dispatcher is the privileged-side registry (it keeps
// emptied channel records and can suspend/resume every listener); Client is
// the constrained-side registry (it deletes emptied records and can send).
package channel
