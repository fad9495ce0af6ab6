// Package minio stores region blobs in MinIO or any S3-compatible service
// (Ceph, Garage, SeaweedFS) without pulling in the AWS SDK.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	blobs := minioblob.NewStore(client, "my-bucket", "world/")
//	store, err := gridstore.Open(ctx, blobs, section.NewAdapter(nil))
package minio
