package feed

import (
	"fmt"
	"os"
	"path/filepath"
)

// Formatter сериализует документ фида в формат канала
type Formatter interface {
	Extension() string
	Format(doc *Document) ([]byte, error)
}

// FormatterFor возвращает сериализатор для формата
func FormatterFor(f Format) Formatter {
	if f == FormatJSON {
		return JSONFormatter{}
	}
	return YMLFormatter{}
}

// FileName возвращает имя файла фида конфигурации
func FileName(marketplaceID string, f Formatter) string {
	return marketplaceID + f.Extension()
}

// WriteFile атомарно записывает фид в каталог: через временный файл и переименование.
// Возвращает путь к записанному файлу.
func WriteFile(dir, marketplaceID string, f Formatter, doc *Document) (string, error) {
	data, err := f.Format(doc)
	if err != nil {
		return "", fmt.Errorf("failed to format feed: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create feed dir: %w", err)
	}

	target := filepath.Join(dir, FileName(marketplaceID, f))
	tmp, err := os.CreateTemp(dir, "."+FileName(marketplaceID, f)+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp feed file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write feed: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to sync feed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close feed: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", fmt.Errorf("failed to chmod feed: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to replace feed: %w", err)
	}

	return target, nil
}
