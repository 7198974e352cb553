package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Secrets holds the contents of the TOML secrets file:
//
//	[auth.credentials.usernames.<username>]
//	name = "Display Name"
//	password = "<bcrypt hash>"
//
//	[google_sheets]
//	gcp_service_account_json = '''{...}'''
//	sheet_id = "..."
//	worksheet = "FARMACI"
type Secrets struct {
	Users        map[string]UserSecret
	GoogleSheets GoogleSheetsSecret
}

type UserSecret struct {
	Name     string `mapstructure:"name"`
	Password string `mapstructure:"password"`
}

type GoogleSheetsSecret struct {
	ServiceAccountJSON string `mapstructure:"gcp_service_account_json"`
	SheetID            string `mapstructure:"sheet_id"`
	Worksheet          string `mapstructure:"worksheet"`
}

const (
	sectionAuth         = "auth"
	sectionGoogleSheets = "google_sheets"
)

// LoadSecrets reads the secrets file at path. The google_sheets section is
// only required when requireSheets is set. All missing sections are
// reported in one error.
func LoadSecrets(path string, requireSheets bool) (*Secrets, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, &ConfigError{fmt.Sprintf("secrets file %s not found", path)}
		}
		return nil, fmt.Errorf("read secrets: %w", err)
	}

	var missing []string
	if !v.IsSet(sectionAuth) {
		missing = append(missing, sectionAuth)
	}
	if requireSheets && !v.IsSet(sectionGoogleSheets) {
		missing = append(missing, sectionGoogleSheets)
	}
	if len(missing) > 0 {
		return nil, &ConfigError{"missing secrets: " + strings.Join(missing, ", ")}
	}

	s := &Secrets{}
	if err := v.UnmarshalKey("auth.credentials.usernames", &s.Users); err != nil {
		return nil, fmt.Errorf("decode auth.credentials.usernames: %w", err)
	}
	if len(s.Users) == 0 {
		return nil, &ConfigError{"no users found in auth.credentials.usernames"}
	}
	for username, u := range s.Users {
		if strings.TrimSpace(u.Name) == "" {
			u.Name = username
			s.Users[username] = u
		}
	}

	if err := v.UnmarshalKey(sectionGoogleSheets, &s.GoogleSheets); err != nil {
		return nil, fmt.Errorf("decode google_sheets: %w", err)
	}
	s.GoogleSheets.Worksheet = strings.TrimSpace(s.GoogleSheets.Worksheet)

	if requireSheets {
		if strings.TrimSpace(s.GoogleSheets.ServiceAccountJSON) == "" {
			return nil, &ConfigError{"google_sheets.gcp_service_account_json is not set"}
		}
		if strings.TrimSpace(s.GoogleSheets.SheetID) == "" {
			return nil, &ConfigError{"google_sheets.sheet_id is not set"}
		}
	}
	return s, nil
}
