package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"worship/internal/env"
	"worship/internal/models"
)

// S3Service is a client for S3-compatible storage.
type S3Service struct {
	client *minio.Client
}

// S3Config holds the MinIO connection settings.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3ConfigFromEnv reads MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_USE_SSL.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Endpoint:  env.GetEnv("MINIO_ENDPOINT", ""),
		AccessKey: env.GetEnv("MINIO_ACCESS_KEY", ""),
		SecretKey: env.GetEnv("MINIO_SECRET_KEY", ""),
		UseSSL:    env.GetEnvBool("MINIO_USE_SSL", false),
	}
}

// NewS3Service connects to the MinIO server described by cfg.
func NewS3Service(cfg S3Config) (*S3Service, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("missing one or more required settings: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log.Println("Successfully connected to MinIO endpoint:", cfg.Endpoint)
	return &S3Service{client: minioClient}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *S3Service) EnsureBucket(ctx context.Context, bucketName string, location string) error {
	exists, err := s.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucketName, err)
	}
	log.Printf("Created bucket '%s'", bucketName)
	return nil
}

// Exists reports whether the object is present.
func (s *S3Service) Exists(ctx context.Context, bucketName, objectKey string) (bool, error) {
	_, err := s.client.StatObject(ctx, bucketName, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("failed to check for existing object: %w", err)
}

// PutJSON marshals v and stores it, replacing any existing object.
func (s *S3Service) PutJSON(ctx context.Context, bucketName, objectKey string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", objectKey, err)
	}
	contentType := "application/json"
	if isGeoJSON(objectKey) {
		contentType = "application/geo+json"
	}
	_, err = s.client.PutObject(ctx, bucketName, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("failed to store object in S3: %w", err)
	}
	log.Printf("Stored '%s' in bucket '%s' (%d bytes)", objectKey, bucketName, len(data))
	return nil
}

// PutJSONIfAbsent stores v only when the key is free. It reports whether it wrote.
func (s *S3Service) PutJSONIfAbsent(ctx context.Context, bucketName, objectKey string, v interface{}) (bool, error) {
	exists, err := s.Exists(ctx, bucketName, objectKey)
	if err != nil {
		return false, err
	}
	if exists {
		log.Printf("Object '%s' already exists in bucket '%s'. Ignoring write operation.", objectKey, bucketName)
		return false, nil
	}
	return true, s.PutJSON(ctx, bucketName, objectKey, v)
}

// KeyedCollection pairs a place collection with the key it is stored under.
type KeyedCollection struct {
	Key        string
	Collection *models.PlaceCollection
}

// StoreCollectionsFromChannel writes every collection received, overwriting
// existing objects, and returns how many were stored.
func (s *S3Service) StoreCollectionsFromChannel(ctx context.Context, bucketName string, collections <-chan KeyedCollection) int64 {
	var wg sync.WaitGroup
	var stored atomic.Int64

	for kc := range collections {
		wg.Add(1)
		go func(kc KeyedCollection) {
			defer wg.Done()
			if err := s.PutJSON(ctx, bucketName, kc.Key, kc.Collection); err != nil {
				log.Printf("Error storing collection '%s': %v", kc.Key, err)
				return
			}
			stored.Add(1)
		}(kc)
	}

	wg.Wait()
	log.Printf("Finished storing collections from the channel. Count %d", stored.Load())
	return stored.Load()
}

// GetObject opens an object for reading; ErrNotFound when it is missing.
func (s *S3Service) GetObject(ctx context.Context, bucketName, objectKey string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, bucketName, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	if _, err := object.Stat(); err != nil {
		object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s/%s: %w", bucketName, objectKey, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	return object, nil
}

// GetJSON decodes an object into v.
func (s *S3Service) GetJSON(ctx context.Context, bucketName, objectKey string, v interface{}) error {
	object, err := s.GetObject(ctx, bucketName, objectKey)
	if err != nil {
		return err
	}
	defer object.Close()
	if err := json.NewDecoder(object).Decode(v); err != nil {
		return fmt.Errorf("failed to decode JSON from stream: %w", err)
	}
	return nil
}

// GetPlaceCollection loads a place collection. It matches the importer's loader signature.
func (s *S3Service) GetPlaceCollection(ctx context.Context, bucketName, objectKey string) (*models.PlaceCollection, error) {
	object, err := s.GetObject(ctx, bucketName, objectKey)
	if err != nil {
		return nil, err
	}
	defer object.Close()
	fc, err := models.DecodePlaceCollection(object)
	if err != nil {
		return nil, err
	}
	log.Printf("Retrieved %d features from bucket '%s' with key '%s'", len(fc.Features), bucketName, objectKey)
	return fc, nil
}

func isGeoJSON(key string) bool {
	return strings.HasSuffix(key, ".geojson")
}
