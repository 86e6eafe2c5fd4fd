// Package ipc is an in-process message bus with a privileged "main" endpoint
// and a constrained "renderer" endpoint.
//
// Each direction has its own event emitter drained by a single goroutine, so
// messages sent in one direction are delivered in send order and a send never
// runs listeners on the caller's goroutine. Listeners receive the delivery
// *Event followed by the message arguments.
package ipc
