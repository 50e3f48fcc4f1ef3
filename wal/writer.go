package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/infinivision/mvbtree/constant"
	"github.com/infinivision/mvbtree/errmsg"
	"golang.org/x/sys/unix"
)

func NewWriter(dir string) (*walWriter, error) {
	fp, err := openLog(dir)
	if err != nil {
		return nil, err
	}
	return &walWriter{dir: dir, fp: fp}, nil
}

func (w *walWriter) Close() error {
	w.Lock()
	defer w.Unlock()
	if w.fp == nil {
		return nil
	}
	err := w.fp.Close()
	w.fp = nil
	return err
}

func (w *walWriter) Append(record []string) error {
	line, err := encode(record)
	if err != nil {
		return err
	}
	w.Lock()
	defer w.Unlock()
	if w.fp == nil {
		return errmsg.Closed
	}
	if _, err := w.fp.WriteString(line); err != nil {
		return err
	}
	return unix.Fdatasync(int(w.fp.Fd()))
}

// Truncate replaces the log with keep. The new log is written aside and
// renamed into place, so a crash leaves either the old or the new log.
func (w *walWriter) Truncate(keep [][]string) error {
	var b strings.Builder
	for _, r := range keep {
		line, err := encode(r)
		if err != nil {
			return err
		}
		b.WriteString(line)
	}
	w.Lock()
	defer w.Unlock()
	if w.fp == nil {
		return errmsg.Closed
	}
	tmp := filepath.Join(w.dir, constant.LogTempName)
	if err := writeSync(tmp, b.String()); err != nil {
		return err
	}
	if err := os.Rename(tmp, filepath.Join(w.dir, constant.LogName)); err != nil {
		return err
	}
	if err := syncDir(w.dir); err != nil {
		return err
	}
	w.fp.Close()
	fp, err := openLog(w.dir)
	if err != nil {
		w.fp = nil
		return err
	}
	w.fp = fp
	return nil
}

func encode(record []string) (string, error) {
	if len(record) == 0 {
		return "", fmt.Errorf("%w: empty record", errmsg.MalformedRecord)
	}
	line := strings.Join(record, " ")
	if strings.ContainsAny(line, "\r\n") {
		return "", fmt.Errorf("%w: record spans lines", errmsg.MalformedRecord)
	}
	return line + "\n", nil
}

func openLog(dir string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, constant.LogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0664)
}

func writeSync(path, data string) error {
	fp, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0664)
	if err != nil {
		return err
	}
	if _, err := fp.WriteString(data); err != nil {
		fp.Close()
		return err
	}
	if err := unix.Fdatasync(int(fp.Fd())); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

func syncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}
