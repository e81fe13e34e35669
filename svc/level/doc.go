// Package level owns the level lifecycle around publishing: editing drafts,
// immediate publish, scheduled publish and its cancellation, and the queue
// handlers that run deferred work (PUBLISH_LEVEL and the statistics,
// indexing and thumbnail jobs triggered by a publish).
//
// # Scheduling
//
// Scheduler.Schedule enqueues a PUBLISH_LEVEL message with runAt set to the
// requested publish time and stamps Level.ScheduledQueueMessageID in the same
// transaction. Scheduler.Cancel fails the pending message with
// "Canceled by user" and clears the pointer, again in one transaction. A
// level with a scheduled publish is locked against editing.
//
// # Publishing
//
// Publisher.PublishNow and the PUBLISH_LEVEL handler share Publisher.apply:
// mark the level published and clear the schedule pointer, seed the author's
// Record and Stat, and enqueue the follow-up jobs. The two paths never
// diverge.
//
// # Storage
//
// Store is implemented in memory (MemoryStore), on MongoDB (MongoStore) and
// on PostgreSQL (PgStore). Every method takes an explicit txn.Tx so writes
// join the caller's transaction; a nil tx runs standalone.
package level
