// Package pgstore implements queue.Repository on PostgreSQL.
//
// The queue_messages table is created by the embedded migrations in the db
// package. A partial unique index on (dedupe_key, type, md5(message)) WHERE
// state = 'PENDING' backs the dedupe upsert, and claims are a single
// UPDATE ... RETURNING statement that also takes PROCESSING rows whose lock
// expired.
package pgstore
