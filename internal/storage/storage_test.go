package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestCleanPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{"пустой", "", ""},
		{"ведущий слэш", "/database/primary/users/system", "database/primary/users/system"},
		{"обратные слэши", "\\database\\primary", "database/primary"},
		{"двойные слэши", "a//b///c", "a/b/c"},
		{"хвостовой слэш", "a/b/", "a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanPrefix(tt.prefix)
			if got != tt.want {
				t.Errorf("ожидалось %q, получено %q", tt.want, got)
			}
		})
	}
}

func TestPartKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		ext    string
		want   string
	}{
		{
			name:   "с префиксом и расширением",
			prefix: "/database/primary/users/system",
			ext:    "pdf",
			want:   "database/primary/users/system/storage/sid/buckets/bid/part-1.pdf",
		},
		{
			name:   "без префикса",
			prefix: "",
			ext:    "pdf",
			want:   "storage/sid/buckets/bid/part-1.pdf",
		},
		{
			name:   "без расширения",
			prefix: "",
			ext:    "",
			want:   "storage/sid/buckets/bid/part-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PartKey(tt.prefix, "sid", "bid", "part-1", tt.ext)
			if got != tt.want {
				t.Errorf("ожидалось %q, получено %q", tt.want, got)
			}
		})
	}
}

func TestSourceExt(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"report.PDF", "pdf"},
		{"archive.tar.gz", "gz"},
		{"noext", "bin"},
		{"", "bin"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			s := &Source{Filename: tt.filename}
			if got := s.Ext(); got != tt.want {
				t.Errorf("Ext(%q) = %q, ожидали %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestProgressWriter(t *testing.T) {
	t.Run("nil-callback возвращает writer без обёртки", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewProgressWriter(&buf, 1, 1, 10, 10, 0, nil)
		if w != &buf {
			t.Error("ожидался исходный writer без обёртки")
		}
	})

	t.Run("проценты от суммарного размера с учётом смещения", func(t *testing.T) {
		var buf bytes.Buffer
		var lastWritten int64
		var lastPercentage int
		w := NewProgressWriter(&buf, 2, 2, 50, 100, 50,
			func(part, totalParts int, written, total int64, percentage int) {
				if part != 2 || totalParts != 2 {
					t.Errorf("part=%d/%d, ожидали 2/2", part, totalParts)
				}
				lastWritten = written
				lastPercentage = percentage
			})

		if _, err := w.Write(make([]byte, 25)); err != nil {
			t.Fatalf("Write() вернул ошибку: %v", err)
		}
		if lastWritten != 25 || lastPercentage != 75 {
			t.Errorf("written=%d percentage=%d, ожидали 25 и 75", lastWritten, lastPercentage)
		}

		if _, err := w.Write(make([]byte, 25)); err != nil {
			t.Fatalf("Write() вернул ошибку: %v", err)
		}
		if lastWritten != 50 || lastPercentage != 100 {
			t.Errorf("written=%d percentage=%d, ожидали 50 и 100", lastWritten, lastPercentage)
		}
	})

	t.Run("неизвестный суммарный размер даёт -1", func(t *testing.T) {
		var buf bytes.Buffer
		got := 0
		w := NewProgressWriter(&buf, 1, 1, -1, -1, 0,
			func(_, _ int, _, _ int64, percentage int) {
				got = percentage
			})
		if _, err := w.Write([]byte("data")); err != nil {
			t.Fatalf("Write() вернул ошибку: %v", err)
		}
		if got != -1 {
			t.Errorf("percentage = %d, ожидали -1", got)
		}
	})
}

func TestNewBufferSource(t *testing.T) {
	src := NewBufferSource([]byte("hello"), "greeting.txt")
	if src.Size != 5 {
		t.Errorf("Size = %d, ожидали 5", src.Size)
	}
	if src.Filename != "greeting.txt" {
		t.Errorf("Filename = %q", src.Filename)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(src.Reader); err != nil {
		t.Fatalf("чтение источника: %v", err)
	}
	if buf.String() != "hello" {
		t.Errorf("содержимое = %q, ожидали 'hello'", buf.String())
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() вернул ошибку: %v", err)
	}
}

// TestNewFileSource проверяет источник «файл на диске»: имя, размер
// и содержимое читаются из файла, несуществующий путь — ошибка.
func TestNewFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.pdf")
	content := []byte("содержимое отчёта")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("запись файла: %v", err)
	}

	src, err := NewFileSource(path)
	if err != nil {
		t.Fatalf("NewFileSource() вернул ошибку: %v", err)
	}
	defer src.Close()

	if src.Filename != "report.pdf" {
		t.Errorf("Filename = %q, ожидалось report.pdf", src.Filename)
	}
	if src.Size != int64(len(content)) {
		t.Errorf("Size = %d, ожидалось %d", src.Size, len(content))
	}
	if got := src.Ext(); got != "pdf" {
		t.Errorf("Ext() = %q, ожидалось pdf", got)
	}
	data, err := io.ReadAll(src.Reader)
	if err != nil {
		t.Fatalf("чтение источника: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("содержимое искажено: %q", data)
	}

	if _, err := NewFileSource(filepath.Join(t.TempDir(), "нет-такого.bin")); err == nil {
		t.Error("ожидалась ошибка для несуществующего файла")
	}
}
