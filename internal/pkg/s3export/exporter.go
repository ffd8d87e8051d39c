package s3export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/MarekWeber/RevRescue/internal/pkg/ledger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// Exporter uploads a daily CSV of ledger entries to S3 so finance tooling
// can pick up recovered revenue without touching the database.
type Exporter struct {
	s3Client *s3.Client
	config   *Config
	repo     ledger.Repository
	now      func() time.Time
}

// NewExporter creates an exporter from config and the ledger repository.
func NewExporter(cfg *Config, repo ledger.Repository) (*Exporter, error) {
	if !cfg.IsEnabled() {
		return nil, fmt.Errorf("ledger export is disabled")
	}

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
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

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	log.Infof("[LedgerExport] Initialized S3 client for bucket: %s", cfg.BucketName)
	return &Exporter{s3Client: s3Client, config: cfg, repo: repo, now: time.Now}, nil
}

// ExportDaily uploads the entries recorded in the trailing 24 hours.
func (e *Exporter) ExportDaily(ctx context.Context) error {
	now := e.now()
	entries, err := e.repo.ListEntriesSince(now.Add(-24 * time.Hour))
	if err != nil {
		return fmt.Errorf("load ledger entries: %w", err)
	}
	if len(entries) == 0 {
		log.Info("[LedgerExport] Nothing recovered in the last 24h, skipping upload")
		return nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"entry_id", "case_id", "owner_account_id", "invoice_reference", "amount_recovered_cents", "currency", "source_event_id", "recovered_at"})
	for _, entry := range entries {
		_ = w.Write([]string{
			strconv.FormatUint(uint64(entry.ID), 10),
			strconv.FormatUint(uint64(entry.RecoveryCaseID), 10),
			strconv.FormatUint(uint64(entry.OwnerAccountID), 10),
			entry.InvoiceReference,
			strconv.FormatInt(entry.AmountRecovered, 10),
			entry.Currency,
			entry.SourceEventID,
			entry.RecoveredAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	key := e.config.GetObjectKey(now)
	_, err = e.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	log.Infof("[LedgerExport] Uploaded %d entries to s3://%s/%s", len(entries), e.config.BucketName, key)
	return nil
}
