package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "engine", "service":
		return engineTemplate, nil
	case "store":
		return storeTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

// Kinds lists the template kinds accepted by Template.
func Kinds() []string {
	return []string{"engine", "store"}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const engineTemplate = `id = "geoctl"
addr = ":9200"
cors_origins = ["http://localhost:3000"]
auth_token = ""
details_limit = 500000
fanout_limit = 8

[gateway]
mode = "http"
base_url = "http://localhost:9300"
token = ""
timeout = "10s"

[store]
id = "geostore"
backend = "store.memory"
`

const storeTemplate = `id = "geostore"
addr = ":9300"
cors_origins = ["http://localhost:3000"]
auth_token = ""
backend = "store.badger"
path = "local/geostore"
sync_writes = false
`
