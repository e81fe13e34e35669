// Package mongostore implements queue.Repository on MongoDB.
//
// Messages live in a single collection. Deduplication is an upsert filtered
// on {dedupeKey, type, message, state: PENDING}, backed by a partial unique
// index created by EnsureIndexes. Claim and every outcome update are single
// conditional updates, so concurrent dispatchers never process a message
// twice.
//
// Operations that accept a txn.Tx join the session transaction started by
// mongo.TxManager.
package mongostore
