package migrate

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DDLWriter stores each table's CREATE statement as <dir>/<table>.sql.
// Nothing is written when dir does not exist.
type DDLWriter struct {
	fs     afero.Fs
	dir    string
	logger *zap.Logger
}

func NewDDLWriter(fs afero.Fs, dir string, logger *zap.Logger) *DDLWriter {
	return &DDLWriter{fs: fs, dir: dir, logger: logger.Named("artifacts")}
}

var _ ArtifactWriter = (*DDLWriter)(nil)

func (w *DDLWriter) WriteDDL(table, ddl string) (string, bool, error) {
	ok, err := afero.DirExists(w.fs, w.dir)
	if err != nil {
		return "", false, fmt.Errorf("stat %s: %w", w.dir, err)
	}
	if !ok {
		w.logger.Debug("DDL output directory does not exist, skipping artifact", zap.String("dir", w.dir), zap.String("table", table))
		return "", false, nil
	}
	path := filepath.Join(w.dir, table+".sql")
	if err := afero.WriteFile(w.fs, path, []byte(ddl), 0o644); err != nil {
		return "", false, fmt.Errorf("write %s: %w", path, err)
	}
	return path, true, nil
}
