package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/diagrams/internal/logging"
	"github.com/dmitrijs2005/diagrams/internal/netx"
	sc "github.com/dmitrijs2005/diagrams/internal/server/config"
	"github.com/dmitrijs2005/diagrams/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const exportContentType = "application/json"

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// ExportResult points at an uploaded diagram snapshot.
type ExportResult struct {
	URL       string
	Key       string
	ExpiresAt time.Time
}

// exportDocument is the JSON written to object storage.
type exportDocument struct {
	ID         int64           `json:"id"`
	Title      string          `json:"title"`
	Content    json.RawMessage `json:"content"`
	UpdatedAt  time.Time       `json:"updated_at"`
	ExportedAt time.Time       `json:"exported_at"`
}

// ExportService snapshots diagrams into S3-compatible storage.
type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	httpClient  *http.Client
	logger      logging.Logger
	now         func() time.Time
}

func NewExportService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config, logger logging.Logger) *ExportService {
	return &ExportService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
		now:         time.Now,
	}
}

func GetRandomExportKey(userID int64) string {
	return fmt.Sprintf("diagrams/%d/%s.json", userID, uuid.New())
}

func (s *ExportService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// Export uploads the current state of the caller's diagram and returns a
// time-limited download URL for it.
func (s *ExportService) Export(ctx context.Context, userID, id int64) (*ExportResult, error) {
	d, err := s.repomanager.Diagrams(s.db).GetByID(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(exportDocument{
		ID:         d.ID,
		Title:      d.Title,
		Content:    d.Content,
		UpdatedAt:  d.UpdatedAt,
		ExportedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, err
	}

	bucket := s.config.S3Bucket
	key := GetRandomExportKey(userID)

	put, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: aws.String(exportContentType),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return nil, err
	}

	if err := netx.UploadToPresignedURL(ctx, s.httpClient, put.URL, exportContentType, body); err != nil {
		return nil, err
	}

	validity := s.config.ExportURLValidity
	get, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(validity))
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "diagram.exported", "user_id", userID, "diagram_id", id, "key", key)
	return &ExportResult{URL: get.URL, Key: key, ExpiresAt: s.now().Add(validity)}, nil
}
