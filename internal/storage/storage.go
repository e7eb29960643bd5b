package storage

import (
	"errors"
	"io"
	"time"
)

var (
	ErrInvalidPath  = errors.New("invalid path")
	ErrFileNotFound = errors.New("file not found")
)

type FileInfo struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
}

type Storage interface {
	SaveFile(r io.Reader, info FileInfo) (string, error)
	OpenFile(path string) (io.ReadSeekCloser, error)
	DeleteFile(path string) error
	ListFiles() ([]FileInfo, error)
}
