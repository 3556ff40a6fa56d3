package bootstrap

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// Loadenv reads .env files into the process environment without overriding
// variables that are already set. A missing file is not an error; the
// caller falls back to the system environment.
func Loadenv(files ...string) (loaded bool, err error) {
	if err := godotenv.Load(files...); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
