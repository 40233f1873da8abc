/*
Package worker executes queued jobs inside luxid.

The Worker drains the job queue one job at a time in id order. It wakes up
on job.submitted events and also rescans the queue periodically, since the
event broker may drop events for a slow subscriber.

For each job the opcodes run in order through the Handler registered for
their OP_ID. Handlers report progress through the Feedback callback, which
appends to the job log and wakes WaitForJobChange callers. The first
failing opcode ends the job with status error; its message is stored as
that opcode's result and appended to the log.

Only the test opcodes are built in:

	OP_TEST_DELAY   sleep "duration" seconds, "repeat" times

Other opcodes are installed with Register. Stop cancels the running
handler's context, so a long delay ends with an "interrupted" error.
*/
package worker
