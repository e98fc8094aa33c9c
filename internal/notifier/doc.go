// Package notifier runs the bridge's outbound actions: status indicator
// updates, focus mode toggles and automation scripts.
//
// # Commands
//
// Every action is an argv template taken from config. Placeholders
// ({icon}, {message}, {script}) are substituted per argument, so values never
// pass through a shell unless the template itself invokes one. An empty
// template turns the action into a logged no-op.
//
// # Launch semantics
//
// Actions block only until the command has been launched. The exit status is
// reaped in the background and a non-zero exit is logged, not returned. A
// launch failure is returned as *ActionError and is fatal to the caller.
//
// # History
//
// For debugging, the service keeps a small in-memory history of recently
// launched actions.
package notifier
