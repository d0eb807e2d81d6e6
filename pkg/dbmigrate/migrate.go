package dbmigrate

import (
	"errors"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Up applies every pending migration in fsys to the database at pgURL.
func Up(log *slog.Logger, fsys fs.FS, pgURL string) error {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DriverURL(pgURL))
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Warn("migrate close failed", "source_err", srcErr, "db_err", dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	log.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}

// DriverURL rewrites a postgres:// URL to the scheme the pgx/v5 migrate
// driver registers.
func DriverURL(pgURL string) string {
	for _, scheme := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(pgURL, scheme) {
			return "pgx5://" + strings.TrimPrefix(pgURL, scheme)
		}
	}
	return pgURL
}
