package storage

import (
	"context"
	"io"

	gcs "cloud.google.com/go/storage"
	"github.com/cyclopcam/logs"
)

// GCS is a blob store on a Google Cloud Storage bucket, for installs that
// want recordings off the box
type GCS struct {
	bucketName string
	bucket     *gcs.BucketHandle
	log        logs.Log
}

func NewGCS(log logs.Log, bucketName string) (*GCS, error) {
	client, err := gcs.NewClient(context.Background())
	if err != nil {
		return nil, err
	}
	return &GCS{
		bucketName: bucketName,
		bucket:     client.Bucket(bucketName),
		log:        log,
	}, nil
}

func (s *GCS) WriteFile(name string) (io.WriteCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	s.log.Infof("Writing recording %v to bucket %v", name, s.bucketName)
	return s.bucket.Object(name).NewWriter(context.Background()), nil
}

func (s *GCS) ReadFile(name string) (*File, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	r, err := s.bucket.Object(name).NewReader(context.Background())
	if err != nil {
		return nil, err
	}
	return &File{
		Reader:     r,
		ModifiedAt: r.Attrs.LastModified,
		Size:       r.Attrs.Size,
	}, nil
}

func (s *GCS) DeleteFile(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	s.log.Infof("Deleting recording %v from bucket %v", name, s.bucketName)
	return s.bucket.Object(name).Delete(context.Background())
}
