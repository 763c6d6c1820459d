package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"discord-chat-manager/internal/ports"
)

// DirFactory раскладывает файлы экспорта по каталогу без упаковки.
type DirFactory struct {
	dir string
}

// NewDirFactory создает новый экземпляр DirFactory.
func NewDirFactory(dir string) *DirFactory {
	return &DirFactory{dir: dir}
}

func (f *DirFactory) NewArchive(_ context.Context, name string) (ports.ArchiveWriter, error) {
	root := uniquePath(filepath.Join(f.dir, name), "")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	return &dirArchive{root: root}, nil
}

type dirArchive struct {
	root string
}

func (a *dirArchive) WriteFile(_ context.Context, name string, data []byte) error {
	path := filepath.Join(a.root, filepath.FromSlash(name))
	if !strings.HasPrefix(path, a.root+string(filepath.Separator)) {
		return fmt.Errorf("path %q escapes export dir", name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create dir for %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func (a *dirArchive) Close(_ context.Context) (string, error) {
	return a.root, nil
}
