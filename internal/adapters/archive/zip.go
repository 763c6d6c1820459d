package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"discord-chat-manager/internal/ports"
)

// ZipFactory создает по zip-файлу на экспорт в каталоге dir.
type ZipFactory struct {
	dir string
}

// NewZipFactory создает новый экземпляр ZipFactory.
func NewZipFactory(dir string) *ZipFactory {
	return &ZipFactory{dir: dir}
}

func (f *ZipFactory) NewArchive(_ context.Context, name string) (ports.ArchiveWriter, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return newZipArchive(uniquePath(filepath.Join(f.dir, name), ".zip"))
}

// zipArchive пишет файлы экспорта в один zip.
type zipArchive struct {
	mu   sync.Mutex
	path string
	file *os.File
	zw   *zip.Writer
}

func newZipArchive(path string) (*zipArchive, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive %s: %w", path, err)
	}
	return &zipArchive{path: path, file: file, zw: zip.NewWriter(file)}, nil
}

func (a *zipArchive) WriteFile(_ context.Context, name string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, err := a.zw.Create(filepath.ToSlash(name))
	if err != nil {
		return fmt.Errorf("failed to add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (a *zipArchive) Close(_ context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.zw.Close(); err != nil {
		a.file.Close()
		return "", fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := a.file.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}
	return a.path, nil
}

// uniquePath добавляет числовой суффикс, если файл уже существует.
func uniquePath(base, ext string) string {
	path := base + ext
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
}
