// Package scheduler triggers periodic maintenance jobs (cron) and one-shot
// delayed jobs. Jobs execute on a Runner, normally the app supervisor.
//
// Periodic job errors are logged and never stop the process. One-shot jobs
// scheduled with After are detached: they cannot be canceled and their error
// is returned to the Runner.
package scheduler
