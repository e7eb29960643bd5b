package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (ls *LocalStorage) resolve(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || strings.Contains(cleanPath, "..") || filepath.IsAbs(cleanPath) || strings.ContainsRune(cleanPath, os.PathSeparator) {
		return "", ErrInvalidPath
	}
	return filepath.Join(ls.basePath, cleanPath), nil
}

// SaveFile writes r under info.Filename, or under a fresh uuid when no name
// is given. The write goes through a temp file so readers never see a
// partial result.
func (ls *LocalStorage) SaveFile(r io.Reader, info FileInfo) (string, error) {
	filename := info.Filename
	if filename == "" {
		filename = uuid.New().String() + ".json"
	}
	fullPath, err := ls.resolve(filename)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(ls.basePath, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return filename, nil
}

func (ls *LocalStorage) OpenFile(path string) (io.ReadSeekCloser, error) {
	fullPath, err := ls.resolve(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (ls *LocalStorage) DeleteFile(path string) error {
	fullPath, err := ls.resolve(path)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrFileNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ListFiles returns stored files, newest first.
func (ls *LocalStorage) ListFiles() ([]FileInfo, error) {
	entries, err := os.ReadDir(ls.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	files := []FileInfo{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Filename:    entry.Name(),
			ContentType: mime.TypeByExtension(filepath.Ext(entry.Name())),
			Size:        fi.Size(),
			ModTime:     fi.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Filename > files[j].Filename
		}
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}
