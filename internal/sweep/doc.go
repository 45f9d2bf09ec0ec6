// Package sweep removes expired jobs and their staged media on a cron
// schedule.
//
// Completed and failed jobs carry an expiry timestamp; once it passes, the
// sweeper deletes the database row, releases any unconfirmed credit
// reservation, and clears the job's staging directory. Orphaned reservations
// whose job vanished are released on the same schedule.
package sweep
