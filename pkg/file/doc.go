// Package file stores generated artifacts, such as level thumbnails, in S3
// or on the local filesystem behind the ObjectStore interface.
//
// S3Storage uses the AWS SDK v2 and works with S3-compatible services
// (MinIO, R2) through S3Endpoint and S3ForcePathStyle. LocalStorage writes
// under a base directory for development.
//
//	store, err := file.NewS3Storage(ctx, cfg)
//	url, err := store.Put(ctx, "levels/abc.png", "image/png", png)
//
// S3 failures are classified into ErrBucketNotFound, ErrAccessDenied,
// ErrServiceUnavailable, ErrOperationTimeout and ErrOperationCanceled.
package file
