// source.go — источники загрузки: буфер в памяти, файл на диске,
// multipart-поток HTTP-запроса. Все сводятся к io.ReadCloser с известным
// (или неизвестным, -1) размером.
package storage

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Source — унифицированный источник данных загрузки.
// Size == -1 означает, что размер заранее неизвестен (живой поток).
type Source struct {
	Reader      io.ReadCloser
	Filename    string
	Size        int64
	ContentType string
}

// Close закрывает нижележащий поток.
func (s *Source) Close() error {
	if s == nil || s.Reader == nil {
		return nil
	}
	return s.Reader.Close()
}

// Ext возвращает расширение имени файла без точки ("bin", если его нет).
func (s *Source) Ext() string {
	ext := strings.TrimPrefix(filepath.Ext(s.Filename), ".")
	if ext == "" {
		return "bin"
	}
	return strings.ToLower(ext)
}

// NewBufferSource оборачивает байтовый буфер.
func NewBufferSource(data []byte, filename string) *Source {
	return &Source{
		Reader:   io.NopCloser(bytes.NewReader(data)),
		Filename: filename,
		Size:     int64(len(data)),
	}
}

// NewFileSource открывает файл на диске.
func NewFileSource(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие файла-источника: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("атрибуты файла-источника: %w", err)
	}
	return &Source{
		Reader:   f,
		Filename: filepath.Base(path),
		Size:     info.Size(),
	}, nil
}

// NewMultipartSource находит первую файловую часть multipart-запроса
// и отдаёт её как живой поток (без буферизации всего тела в памяти).
func NewMultipartSource(r *http.Request) (*Source, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("чтение multipart-тела: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, fmt.Errorf("multipart-тело не содержит файла")
		}
		if err != nil {
			return nil, fmt.Errorf("чтение части multipart-тела: %w", err)
		}
		if part.FileName() == "" {
			_ = part.Close()
			continue
		}
		return &Source{
			Reader:      part,
			Filename:    part.FileName(),
			Size:        -1,
			ContentType: partContentType(part),
		}, nil
	}
}

func partContentType(part *multipart.Part) string {
	ct := part.Header.Get("Content-Type")
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
