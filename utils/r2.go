// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"elo-ladder-system/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// SeasonArchive uploads final-standings snapshots of closed seasons
// to an R2 bucket for history outside the database. Optional: when
// the R2 environment is absent the service runs without archiving.
type SeasonArchive struct {
	client *s3.Client
	bucket string
}

// NewSeasonArchiveFromEnv builds the archive from CLOUDFLARE_ACCOUNT_ID,
// R2_ACCESS_KEY_ID, R2_ACCESS_KEY_SECRET and R2_BUCKET_NAME. Returns
// (nil, nil) when none of them are set.
func NewSeasonArchiveFromEnv() (*SeasonArchive, error) {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	bucket := os.Getenv("R2_BUCKET_NAME")

	if accountID == "" && accessKeyID == "" && accessKeySecret == "" && bucket == "" {
		return nil, nil
	}
	if accountID == "" || accessKeyID == "" || accessKeySecret == "" || bucket == "" {
		return nil, fmt.Errorf("partial R2 configuration: account id, key pair and bucket are all required")
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	return &SeasonArchive{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// ArchiveSeason implements services.SeasonArchiver: writes the
// standings as CSV and uploads them under seasons/season-N.csv.
func (a *SeasonArchive) ArchiveSeason(ctx context.Context, seasonNumber int, standings []services.SeasonStanding) error {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)

	if err := w.Write([]string{"group", "player_id", "points", "games", "rating"}); err != nil {
		return fmt.Errorf("failed to write archive header: %w", err)
	}
	for _, st := range standings {
		record := []string{
			st.GroupName,
			st.PlayerID,
			strconv.FormatFloat(st.Points, 'f', 1, 64),
			strconv.Itoa(st.Games),
			strconv.FormatFloat(st.Rating, 'f', 1, 64),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write archive row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}

	key := fmt.Sprintf("seasons/season-%d.csv", seasonNumber)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        buf,
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload season archive: %w", err)
	}
	return nil
}
