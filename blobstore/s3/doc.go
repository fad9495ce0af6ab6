// Package s3 stores region blobs in Amazon S3 and guards single ownership
// of a remote store with a DynamoDB lease.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", s3.WithPrefix("world/"))
//	lease := s3.NewLease(dynamodb.NewFromConfig(cfg), "gridstore-leases", "my-bucket/world", hostID, time.Minute)
//
// # Features
//
//   - CRC32C checksums on single-part puts
//   - Multipart uploads for regions above UploadConfig.Threshold
//   - Automatic pagination for listing
//   - Conditional-write lease with expiry takeover
package s3
