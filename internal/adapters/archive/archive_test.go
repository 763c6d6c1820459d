package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = string(content)
	}
	return files
}

func TestZipFactory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	f := NewZipFactory(dir)

	a, err := f.NewArchive(ctx, "Guild_general")
	require.NoError(t, err)
	require.NoError(t, a.WriteFile(ctx, "general_page_1.json", []byte("page")))
	require.NoError(t, a.WriteFile(ctx, "media/1_1_a.png", []byte("png")))

	location, err := a.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Guild_general.zip"), location)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"general_page_1.json": "page", "media/1_1_a.png": "png"}, readZip(t, data))

	t.Run("повторный экспорт получает новое имя", func(t *testing.T) {
		again, err := f.NewArchive(ctx, "Guild_general")
		require.NoError(t, err)
		location, err := again.Close(ctx)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "Guild_general_1.zip"), location)
	})
}

func TestDirFactory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := NewDirFactory(dir).NewArchive(ctx, "export")
	require.NoError(t, err)
	require.NoError(t, a.WriteFile(ctx, "general/threads/t/t_page_1.csv", []byte("id")))

	location, err := a.Close(ctx)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(location, "general", "threads", "t", "t_page_1.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id", string(data))

	t.Run("выход за пределы каталога запрещен", func(t *testing.T) {
		assert.Error(t, a.WriteFile(ctx, "../outside.txt", []byte("x")))
	})
}

type fakeUploader struct {
	bucket, key string
	body        []byte
	err         error
}

func (u *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if u.err != nil {
		return nil, u.err
	}
	u.bucket = aws.ToString(in.Bucket)
	u.key = aws.ToString(in.Key)
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	u.body = data
	return &manager.UploadOutput{}, nil
}

func TestS3Factory(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("загрузка собранного архива", func(t *testing.T) {
		up := &fakeUploader{}
		f := NewS3FactoryWithUploader(up, "exports", "discord", t.TempDir(), log)

		a, err := f.NewArchive(ctx, "Guild_general")
		require.NoError(t, err)
		require.NoError(t, a.WriteFile(ctx, "general_page_1.html", []byte("<html>")))

		location, err := a.Close(ctx)
		require.NoError(t, err)
		assert.Equal(t, "s3://exports/discord/Guild_general.zip", location)
		assert.Equal(t, "exports", up.bucket)
		assert.Equal(t, "discord/Guild_general.zip", up.key)
		assert.Equal(t, map[string]string{"general_page_1.html": "<html>"}, readZip(t, up.body))
	})

	t.Run("ошибка загрузки и очистка временных файлов", func(t *testing.T) {
		tmp := t.TempDir()
		f := NewS3FactoryWithUploader(&fakeUploader{err: errors.New("denied")}, "exports", "", tmp, log)

		a, err := f.NewArchive(ctx, "x")
		require.NoError(t, err)
		_, err = a.Close(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "denied")

		entries, err := os.ReadDir(tmp)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
