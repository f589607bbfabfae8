// progress.go — потоковый учёт прогресса. Оборачивает io.Writer и
// дёргает callback после каждого записанного блока.
package storage

import "io"

// progressWriter считает записанные байты одной части и отчитывается
// через ProgressFunc. totalSize — суммарный размер всех частей
// (-1 — проценты не считаются); offset — байты, записанные предыдущими
// частями.
type progressWriter struct {
	dst        io.Writer
	part       int
	totalParts int
	partTotal  int64
	totalSize  int64
	offset     int64
	written    int64
	fn         ProgressFunc
}

// NewProgressWriter создаёт writer с отчётом о прогрессе.
// При nil fn возвращает dst без обёртки.
func NewProgressWriter(dst io.Writer, part, totalParts int, partTotal, totalSize, offset int64, fn ProgressFunc) io.Writer {
	if fn == nil {
		return dst
	}
	return &progressWriter{
		dst:        dst,
		part:       part,
		totalParts: totalParts,
		partTotal:  partTotal,
		totalSize:  totalSize,
		offset:     offset,
		fn:         fn,
	}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	if n > 0 {
		w.written += int64(n)
		percentage := -1
		if w.totalSize > 0 {
			percentage = int((w.offset + w.written) * 100 / w.totalSize)
			if percentage > 100 {
				percentage = 100
			}
		}
		w.fn(w.part, w.totalParts, w.written, w.partTotal, percentage)
	}
	return n, err
}
