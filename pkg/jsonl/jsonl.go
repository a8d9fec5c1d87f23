// Package jsonl — append-only журналы в формате JSON Lines.
package jsonl

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"
)

const maxLine = 1 << 20

// BadLineFunc получает номер битой строки и ошибку декодирования.
type BadLineFunc func(line int, err error)

// Log — журнал записей типа T. Строки никогда не переписываются.
type Log[T any] struct {
	path string
	mu   sync.Mutex

	OnBadLine BadLineFunc
}

func New[T any](path string) *Log[T] {
	return &Log[T]{path: path}
}

func (l *Log[T]) Path() string { return l.path }

// Append дописывает одну запись одной операцией write.
func (l *Log[T]) Append(v T) error {
	b, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	b = append(b, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.path, err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	return f.Close()
}

// Each проходит по записям по порядку. Отсутствующий файл = пустой журнал.
// fn возвращает false, чтобы остановить обход.
func (l *Log[T]) Each(fn func(v T) bool) error {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", l.path, err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	n := 0
	for sc.Scan() {
		n++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var v T
		if err := sonic.Unmarshal(line, &v); err != nil {
			if l.OnBadLine != nil {
				l.OnBadLine(n, err)
			}
			continue
		}
		if !fn(v) {
			return nil
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("scan %s: %w", l.path, err)
	}
	return nil
}

// ReadAll возвращает все записи в порядке добавления.
func (l *Log[T]) ReadAll() ([]T, error) {
	var out []T
	err := l.Each(func(v T) bool {
		out = append(out, v)
		return true
	})
	return out, err
}

// Last возвращает последнюю запись, удовлетворяющую match.
func (l *Log[T]) Last(match func(v T) bool) (T, bool, error) {
	var (
		last  T
		found bool
	)
	err := l.Each(func(v T) bool {
		if match == nil || match(v) {
			last, found = v, true
		}
		return true
	})
	return last, found, err
}
