/*
Package jqueue holds the master's job queue.

Jobs get monotonically increasing ids, continuing after the highest id found
in the archive so ids are never reused across restarts. A job moves through

	queued ──► running ──► success | error
	   │
	   └──► canceled

Cancel only succeeds while a job is still queued. Finalized jobs can be
archived, either explicitly or by AutoArchive, which moves every finalized
job older than a given age into the Archive until a time budget runs out.

WaitForChange blocks until the selected fields of a job, or its log, differ
from what the caller last saw. Waiters are woken through the events broker
and give up after their timeout with a "no change" answer.
*/
package jqueue
