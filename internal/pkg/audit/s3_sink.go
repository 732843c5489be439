package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// shutdownTimeout bounds how long Stop waits for queued uploads.
const shutdownTimeout = 10 * time.Second

// defaultUploadTimeout bounds a single PutObject call.
const defaultUploadTimeout = 30 * time.Second

// ErrArchiveBufferFull is returned when the archive queue cannot take more events.
var ErrArchiveBufferFull = errors.New("audit archive buffer full")

// ObjectPutter is the part of the S3 client the archive needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client creates an S3 client for the audit archive
func NewS3Client(ctx context.Context, cfg *S3Config) (*s3.Client, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("audit archive is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Sink archives events to object storage from a background worker. Write
// only enqueues; a full buffer drops the event instead of blocking.
type S3Sink struct {
	client  ObjectPutter
	config  *S3Config
	queue   chan Event
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewS3Sink creates an archive sink. Call Start before use.
func NewS3Sink(client ObjectPutter, cfg *S3Config) *S3Sink {
	size := cfg.BufferSize
	if size <= 0 {
		size = 256
	}
	return &S3Sink{
		client: client,
		config: cfg,
		queue:  make(chan Event, size),
		stopCh: make(chan struct{}),
	}
}

// Start launches the upload worker.
func (s *S3Sink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.wg.Add(1)
	go s.worker()
	log.Infof("[Audit] S3 archive started for bucket %s", s.config.BucketName)
}

// Stop drains queued events and stops the worker.
func (s *S3Sink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.stopCh)
	s.running = false
	s.wg.Wait()
	log.Info("[Audit] S3 archive stopped")
}

func (s *S3Sink) Write(ctx context.Context, event Event) error {
	select {
	case s.queue <- event:
		return nil
	default:
		return ErrArchiveBufferFull
	}
}

func (s *S3Sink) worker() {
	defer s.wg.Done()
	for {
		select {
		case event := <-s.queue:
			ctx, cancel := context.WithTimeout(context.Background(), s.uploadTimeout())
			s.upload(ctx, event)
			cancel()
		case <-s.stopCh:
			s.drain()
			return
		}
	}
}

func (s *S3Sink) uploadTimeout() time.Duration {
	if s.config.UploadTimeout > 0 {
		return s.config.UploadTimeout
	}
	return defaultUploadTimeout
}

func (s *S3Sink) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for {
		select {
		case event := <-s.queue:
			s.upload(ctx, event)
		default:
			return
		}
	}
}

func (s *S3Sink) upload(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Errorf("[Audit] archive marshal failed: %v", err)
		return
	}
	key := s.config.ObjectKey(event)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		log.Warnf("[Audit] archive upload of %s failed: %v", key, err)
	}
}
