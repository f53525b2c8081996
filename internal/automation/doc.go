// Package automation implements the lifecycle automation pipeline: the
// trigger dispatcher that turns customer events into scheduled log rows,
// and the log processor that later executes them through the configured
// send channels.
//
// The only scheduling mechanism is polling: the dispatcher writes
// AutomationLog rows with a scheduled_at timestamp, and the processor is
// invoked periodically (cron beat or worker ticker) to claim and execute
// whatever is due. There is no in-memory queue to lose on restart.
package automation
