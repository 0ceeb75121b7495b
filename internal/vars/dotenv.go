package vars

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
)

const dotEnvDefaultName = "default"

// IsDotEnvPath accepts .env, .env.<name> and <name>.env, never JSON files.
func IsDotEnvPath(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(base, ".json") {
		return false
	}
	return base == ".env" || strings.HasPrefix(base, ".env.") || strings.HasSuffix(base, ".env")
}

// LoadDotEnv reads a dotenv file into an environment. A `workspace` key names
// the environment and is not kept as a variable; otherwise the name comes
// from the file name. Variables are sorted by key.
func LoadDotEnv(path string, newID func() string) (*model.Environment, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdef.Wrap(errdef.CodeFilesystem, err, "open env file %s", path)
		}
		return nil, errdef.Wrap(errdef.CodeParse, err, "parse env file %s", path)
	}

	name := deriveDotEnvName(values, path)
	keys := make([]string, 0, len(values))
	for key := range values {
		if isWorkspaceKey(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	env := &model.Environment{ID: newID(), Name: name}
	for _, key := range keys {
		env.Variables = append(env.Variables, model.Variable{
			ID:      newID(),
			Key:     key,
			Value:   values[key],
			Enabled: true,
		})
	}
	return env, nil
}

func deriveDotEnvName(values map[string]string, path string) string {
	if name := workspaceName(values); name != "" {
		return name
	}

	base := filepath.Base(path)
	lower := strings.ToLower(base)
	switch {
	case lower == ".env":
		return dotEnvDefaultName
	case strings.HasPrefix(lower, ".env.") && len(base) > len(".env."):
		return strings.TrimSpace(base[len(".env."):])
	case strings.HasSuffix(lower, ".env") && len(base) > len(".env"):
		return strings.TrimSpace(base[:len(base)-len(".env")])
	}

	stem := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		return dotEnvDefaultName
	}
	return stem
}

func workspaceName(values map[string]string) string {
	for key, value := range values {
		if isWorkspaceKey(key) {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func isWorkspaceKey(key string) bool {
	return strings.EqualFold(strings.TrimSpace(key), "workspace")
}
