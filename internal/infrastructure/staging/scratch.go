package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"area-bot/internal/domain/port"
	"area-bot/internal/logger"
)

// ScratchDir рабочий каталог для временных копий загруженных изображений.
type ScratchDir struct {
	root string
}

// New очищает каталог root и создаёт его заново: файлы прошлого запуска
// никому не нужны.
func New(root string) (*ScratchDir, error) {
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("reset scratch dir: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &ScratchDir{root: root}, nil
}

// Root возвращает путь к каталогу.
func (d *ScratchDir) Root() string {
	return d.root
}

// Stage кладёт data в файл name. Если файл с таким именем уже есть, запись
// пропускается, и release его не удаляет: им владеет тот, кто его создал.
func (d *ScratchDir) Stage(name string, data []byte) (string, func(), error) {
	path := filepath.Join(d.root, cleanName(name))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		logger.L().Debug("staged file already exists, reusing", zap.String("file", path))
		return path, func() {}, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("stage %s: %w", name, err)
	}

	release := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.L().Warn("failed to delete staged file", zap.String("file", path), zap.Error(err))
			return
		}
		logger.L().Debug("staged file deleted", zap.String("file", path))
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		release()
		return "", nil, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		release()
		return "", nil, fmt.Errorf("close %s: %w", name, err)
	}

	return path, release, nil
}

// cleanName оставляет только базовое имя файла, пустое заменяет на UUID.
func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return uuid.NewString()
	}
	return name
}

var _ port.ImageStager = (*ScratchDir)(nil)
