package objectdestination

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	noSuchKeyErrorCodeConstant         = "NoSuchKey"
	objectNotFoundMessageConstant      = "object not found"
	endpointMissingMessageConstant     = "object destination requires an endpoint"
	bucketMissingMessageConstant       = "object destination requires a bucket"
	credentialsIncompleteMessage       = "object destination requires both access key and secret key"
	clientMissingMessageConstant       = "object store requires a minio client"
	ensureBucketErrorTemplateConstant  = "unable to ensure bucket %s: %w"
	bucketMissingErrorTemplateConstant = "bucket %s does not exist"
	listObjectsErrorTemplateConstant   = "unable to list objects under %s: %w"
	dialTimeoutConstant                = 5 * time.Second
	dialKeepAliveConstant              = 30 * time.Second
	maximumIdleConnectionsConstant     = 100
	idleConnectionTimeoutConstant      = 90 * time.Second
	tlsHandshakeTimeoutConstant        = 5 * time.Second
	expectContinueTimeoutConstant      = 1 * time.Second
)

var (
	// ErrEndpointMissing indicates the configuration lacks an endpoint.
	ErrEndpointMissing = errors.New(endpointMissingMessageConstant)
	// ErrBucketMissing indicates the configuration lacks a bucket.
	ErrBucketMissing = errors.New(bucketMissingMessageConstant)
	// ErrCredentialsIncomplete indicates only one of access key and secret key was provided.
	ErrCredentialsIncomplete = errors.New(credentialsIncompleteMessage)
	// ErrObjectNotFound indicates the requested object does not exist.
	ErrObjectNotFound = errors.New(objectNotFoundMessageConstant)
	// ErrClientMissing indicates the store was constructed without a client.
	ErrClientMissing = errors.New(clientMissingMessageConstant)
)

// StoreConfiguration describes the bucket connection.
type StoreConfiguration struct {
	Endpoint     string
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	CreateBucket bool
}

// Validate reports configuration problems.
func (configuration StoreConfiguration) Validate() error {
	if len(strings.TrimSpace(configuration.Endpoint)) == 0 {
		return ErrEndpointMissing
	}
	if len(strings.TrimSpace(configuration.Bucket)) == 0 {
		return ErrBucketMissing
	}
	if (len(configuration.AccessKey) == 0) != (len(configuration.SecretKey) == 0) {
		return ErrCredentialsIncomplete
	}
	return nil
}

// ObjectStore is the subset of bucket operations the destination relies on.
type ObjectStore interface {
	Put(executionContext context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(executionContext context.Context, key string) ([]byte, error)
	List(executionContext context.Context, prefix string) ([]string, error)
	Delete(executionContext context.Context, key string) error
}

// MinioStore implements ObjectStore with a minio client bound to one bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the configured endpoint and verifies, or creates, the bucket.
func NewMinioStore(executionContext context.Context, configuration StoreConfiguration) (*MinioStore, error) {
	if validationError := configuration.Validate(); validationError != nil {
		return nil, validationError
	}

	client, clientError := minio.New(configuration.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(configuration.AccessKey, configuration.SecretKey, ""),
		Secure:    configuration.UseSSL,
		Region:    configuration.Region,
		Transport: newTransport(),
	})
	if clientError != nil {
		return nil, clientError
	}

	if bucketError := ensureBucket(executionContext, client, configuration); bucketError != nil {
		return nil, bucketError
	}
	return NewMinioStoreWithClient(client, configuration.Bucket)
}

// NewMinioStoreWithClient wraps an existing client.
func NewMinioStoreWithClient(client *minio.Client, bucket string) (*MinioStore, error) {
	if client == nil {
		return nil, ErrClientMissing
	}
	if len(strings.TrimSpace(bucket)) == 0 {
		return nil, ErrBucketMissing
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

// Put uploads body under key.
func (store *MinioStore) Put(executionContext context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, putError := store.client.PutObject(executionContext, store.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	return putError
}

// Get downloads the object stored under key, returning ErrObjectNotFound when it does not exist.
func (store *MinioStore) Get(executionContext context.Context, key string) ([]byte, error) {
	if _, statError := store.client.StatObject(executionContext, store.bucket, key, minio.StatObjectOptions{}); statError != nil {
		return nil, translateMinioError(statError)
	}

	object, getError := store.client.GetObject(executionContext, store.bucket, key, minio.GetObjectOptions{})
	if getError != nil {
		return nil, translateMinioError(getError)
	}
	defer object.Close()

	content, readError := io.ReadAll(object)
	if readError != nil {
		return nil, translateMinioError(readError)
	}
	return content, nil
}

// List returns every key under prefix.
func (store *MinioStore) List(executionContext context.Context, prefix string) ([]string, error) {
	keys := []string{}
	for objectInfo := range store.client.ListObjects(executionContext, store.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if objectInfo.Err != nil {
			return nil, fmt.Errorf(listObjectsErrorTemplateConstant, prefix, objectInfo.Err)
		}
		keys = append(keys, objectInfo.Key)
	}
	return keys, nil
}

// Delete removes the object stored under key.
func (store *MinioStore) Delete(executionContext context.Context, key string) error {
	return store.client.RemoveObject(executionContext, store.bucket, key, minio.RemoveObjectOptions{})
}

func ensureBucket(executionContext context.Context, client *minio.Client, configuration StoreConfiguration) error {
	exists, existsError := client.BucketExists(executionContext, configuration.Bucket)
	if existsError != nil {
		return fmt.Errorf(ensureBucketErrorTemplateConstant, configuration.Bucket, existsError)
	}
	if exists {
		return nil
	}
	if !configuration.CreateBucket {
		return fmt.Errorf(bucketMissingErrorTemplateConstant, configuration.Bucket)
	}
	if makeError := client.MakeBucket(executionContext, configuration.Bucket, minio.MakeBucketOptions{Region: configuration.Region}); makeError != nil {
		return fmt.Errorf(ensureBucketErrorTemplateConstant, configuration.Bucket, makeError)
	}
	return nil
}

func translateMinioError(failure error) error {
	if minio.ToErrorResponse(failure).Code == noSuchKeyErrorCodeConstant {
		return ErrObjectNotFound
	}
	return failure
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   dialTimeoutConstant,
		KeepAlive: dialKeepAliveConstant,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maximumIdleConnectionsConstant,
		IdleConnTimeout:       idleConnectionTimeoutConstant,
		TLSHandshakeTimeout:   tlsHandshakeTimeoutConstant,
		ExpectContinueTimeout: expectContinueTimeoutConstant,
	}
}
