package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// OverrideVars name environment variables that point at an env file and
// win over the --env flag, in order.
var OverrideVars = []string{"NEWSDESK_ENV_FILE", "HORSE_ENV_FILE"}

// EnvLoader loads .env files with a predictable override order.
type EnvLoader struct {
	value       *string
	defaultPath string
}

type envCandidate struct {
	path   string
	origin string
	// explicit candidates come from override variables and warn on failure.
	explicit bool
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	value := fs.String("env", defaultPath, description)
	return &EnvLoader{
		value:       value,
		defaultPath: defaultPath,
	}
}

// Load overloads the first env file that parses and returns its path.
// Values from the file replace variables already set in the process.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}

	log.SetOutput(os.Stderr)

	candidates := l.candidates()
	for _, candidate := range candidates {
		if err := godotenv.Overload(candidate.path); err != nil {
			if candidate.explicit {
				log.Printf("Warning: failed to load %s=%s", candidate.origin, candidate.path)
			}
			continue
		}
		log.Printf("Loaded environment from %s: %s", candidate.origin, candidate.path)
		return candidate.path, nil
	}

	return "", fmt.Errorf("failed to load env file from %s", l.requested())
}

func (l *EnvLoader) requested() string {
	requested := ""
	if l.value != nil {
		requested = strings.TrimSpace(*l.value)
	}
	if requested == "" {
		requested = l.defaultPath
	}
	return requested
}

// candidates lists env files to try: override variables, the flag value,
// its basename in the working directory, then the default path.
func (l *EnvLoader) candidates() []envCandidate {
	var out []envCandidate
	seen := make(map[string]struct{})
	add := func(path, origin string, explicit bool) {
		if path == "" {
			return
		}
		if _, dup := seen[path]; dup {
			return
		}
		seen[path] = struct{}{}
		out = append(out, envCandidate{path: path, origin: origin, explicit: explicit})
	}

	for _, envVar := range OverrideVars {
		add(strings.TrimSpace(os.Getenv(envVar)), envVar, true)
	}
	requested := l.requested()
	add(requested, "flag", false)
	add(filepath.Base(requested), "basename", false)
	add(l.defaultPath, "default", false)
	return out
}
