package storage

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/customeros/mailsync/interfaces"
	"github.com/customeros/mailsync/services/storage/aws_client"
)

// NewS3StorageService creates a StorageService backed by AWS S3 or any
// S3-compatible endpoint (endpoint left empty means AWS).
func NewS3StorageService(accessKeyID, accessKeySecret, region, endpoint, bucketName string) interfaces.StorageService {
	awsCfg := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewStaticCredentials(accessKeyID, accessKeySecret, ""),
	}
	if endpoint != "" {
		awsCfg.Endpoint = aws.String(endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	return NewStorageService(aws_client.NewS3Client(awsCfg), bucketName)
}
