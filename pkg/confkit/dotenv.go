package confkit

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads .env files the first time it is called.
//
//   - NO_DOTENV=1 disables loading entirely.
//   - ENV_FILE=path loads exactly that file.
//   - Otherwise every .env from this package up to the repository root is loaded,
//     nearest first, so closer files win.
//
// Variables already present in the environment are kept unless DOTENV_OVERLOAD=1.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}

	overload := os.Getenv("DOTENV_OVERLOAD") == "1"
	load := func(paths ...string) {
		if overload {
			_ = godotenv.Overload(paths...)
		} else {
			_ = godotenv.Load(paths...)
		}
	}

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		load(envFile)
		return
	}

	if _, ok := walkUp(func(dir string) bool {
		load(filepath.Join(dir, ".env"))
		return false
	}); ok {
		return
	}
	load(".env")
}
