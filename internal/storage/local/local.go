// Пакет local — бэкенд хранилища на локальном диске.
// Физический путь части: <корень>/<логический путь>; логические пути
// всегда с прямыми слэшами, на диск транслируются через filepath.
// Запись атомарна: временный файл → fsync → rename.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/gorefstore/internal/domain/model"
	"github.com/bigkaa/gorefstore/internal/storage"
)

// Adapter — адаптер локального диска.
type Adapter struct {
	root   string
	prefix string
}

// New создаёт адаптер с корнем root и логическим префиксом prefix.
// Корень создаётся при необходимости.
func New(root, prefix string) (*Adapter, error) {
	if root == "" {
		return nil, fmt.Errorf("корень локального хранилища не задан: %w", storage.ErrConnect)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("нормализация корня %s: %w", root, storage.ErrConnect)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("создание корня %s: %w", abs, storage.ErrConnect)
	}
	return &Adapter{root: abs, prefix: prefix}, nil
}

// Root возвращает физический корень адаптера.
func (a *Adapter) Root() string {
	return a.root
}

// physical транслирует логический путь части в путь на диске.
func (a *Adapter) physical(logical string) string {
	return filepath.Join(a.root, filepath.FromSlash(logical))
}

// Upload сохраняет источник одной частью.
func (a *Adapter) Upload(ctx context.Context, params storage.UploadParams) (*storage.UploadResult, error) {
	src := params.Source
	if src == nil || src.Reader == nil {
		return nil, fmt.Errorf("источник загрузки пуст: %w", storage.ErrUpload)
	}
	uid := uuid.New().String()
	ext := src.Ext()
	logical := storage.PartKey(a.prefix, params.StorageID, params.BucketID, uid, ext)

	n, err := a.writeFile(ctx, logical, src.Reader, 1, 1, src.Size, src.Size, params.OnProgress)
	if err != nil {
		return nil, fmt.Errorf("запись части %s: %w", logical, err)
	}

	part := model.FilePart{
		UID:    uid,
		Order:  1,
		Ext:    ext,
		Size:   n,
		Length: n,
		Path:   logical,
	}
	return &storage.UploadResult{
		Parts:    []model.FilePart{part},
		Filename: src.Filename,
		Ext:      ext,
		Type:     src.ContentType,
		Size:     n,
	}, nil
}

// WritePart записывает готовую часть из потока (репликация, перенос).
func (a *Adapter) WritePart(ctx context.Context, part model.FilePart, r io.Reader, onProgress storage.ProgressFunc) error {
	if _, err := a.writeFile(ctx, part.Path, r, part.Order, part.Order, part.Size, part.Size, onProgress); err != nil {
		return fmt.Errorf("запись части %s: %w", part.Path, err)
	}
	return nil
}

// writeFile — атомарная потоковая запись: временный файл рядом с целевым,
// fsync, rename. Возвращает число записанных байт.
func (a *Adapter) writeFile(ctx context.Context, logical string, r io.Reader,
	part, totalParts int, partTotal, totalSize int64, onProgress storage.ProgressFunc) (int64, error) {

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	phys := a.physical(logical)
	if err := os.MkdirAll(filepath.Dir(phys), 0o755); err != nil {
		return 0, fmt.Errorf("создание каталога: %w", errUpload(err))
	}

	tmp := phys + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("создание временного файла: %w", errUpload(err))
	}
	// При ошибке временный файл убирается, цель не затрагивается.
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}

	dst := storage.NewProgressWriter(f, part, totalParts, partTotal, totalSize, 0, onProgress)
	n, err := io.Copy(dst, r)
	if err != nil {
		cleanup()
		return 0, fmt.Errorf("копирование потока: %w", errUpload(err))
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return 0, fmt.Errorf("fsync: %w", errUpload(err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("закрытие временного файла: %w", errUpload(err))
	}
	if err := os.Rename(tmp, phys); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("rename: %w", errUpload(err))
	}
	return n, nil
}

// Download пишет части в Dest в порядке Order.
func (a *Adapter) Download(ctx context.Context, params storage.DownloadParams) error {
	parts := orderedParts(params.Parts)
	var offset int64
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		rc, err := a.ReadStream(ctx, part)
		if err != nil {
			return fmt.Errorf("часть %s: %w", part.UID, err)
		}
		dst := storage.NewProgressWriter(params.Dest, i+1, len(parts), part.Size, params.Size, offset, params.OnProgress)
		n, err := io.Copy(dst, rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("чтение части %s: %w", part.UID, errDownload(err))
		}
		offset += n
	}
	return nil
}

// ReadStream открывает поток чтения одной части.
func (a *Adapter) ReadStream(_ context.Context, part model.FilePart) (io.ReadCloser, error) {
	f, err := os.Open(a.physical(part.Path))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", part.Path, storage.ErrPartNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("открытие части %s: %w", part.Path, errDownload(err))
	}
	return f, nil
}

// Delete удаляет физические части и подчищает опустевшие каталоги
// вверх до корня хранилища. Отсутствующая часть считается удалённой.
func (a *Adapter) Delete(ctx context.Context, params storage.DeleteParams) (*storage.DeleteResult, error) {
	res := &storage.DeleteResult{}
	for _, part := range params.Parts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		phys := a.physical(part.Path)
		err := os.Remove(phys)
		if err != nil && !os.IsNotExist(err) {
			res.Errors = append(res.Errors,
				fmt.Errorf("часть %s: %v: %w", part.UID, err, storage.ErrPartDelete))
			continue
		}
		res.Deleted = append(res.Deleted, part)
		a.pruneEmptyDirs(filepath.Dir(phys))
	}
	return res, nil
}

// pruneEmptyDirs удаляет опустевшие каталоги от dir вверх, не выходя
// за корень хранилища.
func (a *Adapter) pruneEmptyDirs(dir string) {
	for {
		if dir == a.root || !strings.HasPrefix(dir, a.root+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func orderedParts(parts []model.FilePart) []model.FilePart {
	out := make([]model.FilePart, len(parts))
	copy(out, parts)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

func errUpload(err error) error {
	return fmt.Errorf("%v: %w", err, storage.ErrUpload)
}

func errDownload(err error) error {
	return fmt.Errorf("%v: %w", err, storage.ErrDownload)
}
