// Package api implements the HTTP handlers of the admin API: submitting
// tasks of each kind, inspecting and cancelling them, and controlling the
// queue. Handlers translate between JSON and the task queue; they hold no
// state of their own.
package api
