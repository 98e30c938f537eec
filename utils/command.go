package utils

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// CmdEnv returns the environment of a child process.
//
// It starts from the current environment, activates the virtualenv when one
// is given and exists, then applies the ordered KEY=VALUE overrides.
func CmdEnv(virtualenv string, overrides []string) []string {
	env := os.Environ()
	if virtualenv != "" && DirExists(virtualenv) {
		binDir := filepath.Join(virtualenv, "bin")
		if runtime.GOOS == "windows" {
			binDir = filepath.Join(virtualenv, "Scripts")
		}
		env = SetEnv(env, "VIRTUAL_ENV", virtualenv)
		env = SetEnv(env, "PATH", binDir+string(os.PathListSeparator)+GetEnv(env, "PATH"))
		env = UnsetEnv(env, "PYTHONHOME")
	}
	for _, kv := range overrides {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		env = SetEnv(env, key, value)
	}
	return env
}

// GetEnv returns the value of key in env, or "".
func GetEnv(env []string, key string) string {
	for i := len(env) - 1; i >= 0; i-- {
		if k, v, _ := strings.Cut(env[i], "="); k == key {
			return v
		}
	}
	return ""
}

// SetEnv replaces every key entry of env with a single key=value at the end.
func SetEnv(env []string, key, value string) []string {
	return append(UnsetEnv(env, key), key+"="+value)
}

// UnsetEnv removes key from env.
func UnsetEnv(env []string, key string) []string {
	out := env[:0:0]
	for _, kv := range env {
		if k, _, _ := strings.Cut(kv, "="); k == key {
			continue
		}
		out = append(out, kv)
	}
	return out
}

// LookPath finds an executable the way the child process will: names with a
// path separator are resolved against dir, others are searched in the PATH
// of env.
func LookPath(file, dir string, env []string) (string, error) {
	if strings.ContainsRune(file, filepath.Separator) || strings.ContainsRune(file, '/') {
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		if err := executable(file); err != nil {
			return "", err
		}
		return file, nil
	}
	if runtime.GOOS == "windows" {
		// PATHEXT handling is left to the standard lookup.
		return exec.LookPath(file)
	}
	for _, p := range filepath.SplitList(GetEnv(env, "PATH")) {
		if p == "" {
			p = "."
		}
		candidate := filepath.Join(p, file)
		if executable(candidate) == nil {
			return candidate, nil
		}
	}
	return "", errors.Wrapf(exec.ErrNotFound, "%s", file)
}

func executable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o111 == 0 {
		return errors.Errorf("%s is not executable", path)
	}
	return nil
}
