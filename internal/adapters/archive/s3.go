package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"discord-chat-manager/internal/ports"
)

// Uploader - часть manager.Uploader, которая нужна архиву.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Factory собирает zip во временном каталоге и загружает его в бакет при закрытии.
type S3Factory struct {
	uploader Uploader
	bucket   string
	prefix   string
	tmpDir   string
	log      *slog.Logger
}

// NewS3Factory создает фабрику с клиентом из стандартной цепочки учетных данных AWS.
func NewS3Factory(ctx context.Context, region, bucket, prefix string, log *slog.Logger) (*S3Factory, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewS3FactoryWithUploader(manager.NewUploader(s3.NewFromConfig(cfg)), bucket, prefix, os.TempDir(), log), nil
}

// NewS3FactoryWithUploader создает фабрику с готовым загрузчиком.
func NewS3FactoryWithUploader(uploader Uploader, bucket, prefix, tmpDir string, log *slog.Logger) *S3Factory {
	if log == nil {
		log = slog.Default()
	}
	return &S3Factory{uploader: uploader, bucket: bucket, prefix: prefix, tmpDir: tmpDir, log: log}
}

func (f *S3Factory) NewArchive(_ context.Context, name string) (ports.ArchiveWriter, error) {
	tmp, err := os.MkdirTemp(f.tmpDir, "export-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	zipped, err := newZipArchive(filepath.Join(tmp, name+".zip"))
	if err != nil {
		os.RemoveAll(tmp)
		return nil, err
	}
	return &s3Archive{zip: zipped, tmp: tmp, key: path.Join(f.prefix, name+".zip"), factory: f}, nil
}

type s3Archive struct {
	zip     *zipArchive
	tmp     string
	key     string
	factory *S3Factory
}

func (a *s3Archive) WriteFile(ctx context.Context, name string, data []byte) error {
	return a.zip.WriteFile(ctx, name, data)
}

func (a *s3Archive) Close(ctx context.Context) (string, error) {
	defer os.RemoveAll(a.tmp)

	local, err := a.zip.Close(ctx)
	if err != nil {
		return "", err
	}
	file, err := os.Open(local)
	if err != nil {
		return "", fmt.Errorf("failed to reopen archive: %w", err)
	}
	defer file.Close()

	_, err = a.factory.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.factory.bucket),
		Key:         aws.String(a.key),
		Body:        file,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", a.key, err)
	}

	location := fmt.Sprintf("s3://%s/%s", a.factory.bucket, a.key)
	a.factory.log.Info("export uploaded", "location", location)
	return location, nil
}
