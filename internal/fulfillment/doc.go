// Package fulfillment dispatches the one external notification owed to a
// pending job.
//
// [RunFulfill] loads the job, checks it is still pending, resolves a
// destination, and persists the terminal status with a conditional update
// before sending. Persist-then-send: a crash between the update and the send
// leaves the job filed with nothing delivered.
//
// # What this package must NOT do
//
//   - Send anything before the conditional update reports a row changed.
//   - Roll back the status after a failed send.
//   - Import trustcore.
package fulfillment
