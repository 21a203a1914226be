package adapters

import (
	"io"
	"os"
	"path/filepath"
)

// atomicWriteFile writes content to a temporary file next to path and
// renames it into place, so readers never observe a partial file.
func atomicWriteFile(path string, content io.Reader, mode os.FileMode) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tf, err := os.CreateTemp(filepath.Split(path))
	if err != nil {
		return err
	}
	tfName := tf.Name()
	defer func() {
		if err != nil {
			os.Remove(tfName)
		}
	}()
	if _, err := io.Copy(tf, content); err != nil {
		tf.Close()
		return err
	}
	if err := tf.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tfName, mode); err != nil {
		return err
	}
	return os.Rename(tfName, path)
}
