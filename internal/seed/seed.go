// Package seed carga el pool de cuentas desde un archivo YAML.
//
//	accounts:
//	  - username: chef_bot
//	    credential: ${CHEF_BOT_PASSWORD}
//	    proxy: http://10.0.0.5:3128
//	    sessionId: ""
//	    disabled: false
package seed

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// File es el contenido del archivo de semillas
type File struct {
	Platform string  `yaml:"platform"`
	Accounts []Entry `yaml:"accounts"`
}

// Entry es una cuenta a crear
type Entry struct {
	Username  string `yaml:"username"`
	Secret    string `yaml:"credential"`
	ProxyURL  string `yaml:"proxy"`
	SessionID string `yaml:"sessionId"`
	Disabled  bool   `yaml:"disabled"`
}

// Load lee y valida path
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodifica el YAML, expande ${VAR} en las credenciales y valida
func Parse(r io.Reader) (*File, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("seed file is empty")
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	for i := range file.Accounts {
		e := &file.Accounts[i]
		e.Username = strings.TrimSpace(e.Username)
		e.Secret = os.ExpandEnv(e.Secret)
		e.SessionID = os.ExpandEnv(e.SessionID)
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate exige usuario y credencial, sin usuarios repetidos
func (f *File) Validate() error {
	if len(f.Accounts) == 0 {
		return fmt.Errorf("seed file has no accounts")
	}

	seen := make(map[string]bool, len(f.Accounts))
	for i, e := range f.Accounts {
		if e.Username == "" {
			return fmt.Errorf("account #%d: username is required", i+1)
		}
		if e.Secret == "" {
			return fmt.Errorf("account %s: credential is required (unset env var?)", e.Username)
		}
		if seen[e.Username] {
			return fmt.Errorf("account %s: duplicated username", e.Username)
		}
		seen[e.Username] = true
	}
	return nil
}
