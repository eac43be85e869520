package installer

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/tanq16/kickstart/internal/config"
	"github.com/tanq16/kickstart/internal/utils"
)

// Clean removes the staged executable and the log file left in the install
// directory. The installed executable and the welcome marker are kept.
func Clean(cfg config.Config) ([]string, error) {
	return clean(osFS{}, cfg)
}

func clean(fsys fileSystem, cfg config.Config) ([]string, error) {
	candidates := []string{
		cfg.TargetPath() + utils.StagingSuffix,
		filepath.Join(cfg.InstallDir, utils.LogFile),
	}
	var removed []string
	var errs []error
	for _, path := range candidates {
		err := fsys.Remove(path)
		switch {
		case err == nil:
			log.Debug().Str("op", "installer/clean").Str("path", path).Msg("Removed")
			removed = append(removed, path)
		case errors.Is(err, fs.ErrNotExist):
		default:
			errs = append(errs, fmt.Errorf("error removing %s: %w", path, err))
		}
	}
	return removed, errors.Join(errs...)
}
