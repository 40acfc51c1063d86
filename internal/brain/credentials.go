package brain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrMissingCredentials is returned when no source yields both a username and a password.
var ErrMissingCredentials = errors.New("missing username or password (set WQB_USERNAME/WQB_PASSWORD or pass credentials)")

// Credentials are the basic-auth pair used to sign in.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// LoadCredentials resolves credentials. Explicit username and password win when
// both are given. Otherwise path, if set, is read as JSON: an object, or a list
// whose first element is used. Without a path the environment variables
// WQB_USERNAME and WQB_PASSWORD are consulted.
func LoadCredentials(path, username, password string) (Credentials, error) {
	if username != "" && password != "" {
		return Credentials{Username: username, Password: password}, nil
	}

	var creds Credentials
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Credentials{}, fmt.Errorf("failed to read credentials: %w", err)
		}
		creds, err = parseCredentials(data)
		if err != nil {
			return Credentials{}, err
		}
	} else {
		creds = Credentials{
			Username: os.Getenv("WQB_USERNAME"),
			Password: os.Getenv("WQB_PASSWORD"),
		}
	}

	if !creds.Valid() {
		return Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}

func parseCredentials(data []byte) (Credentials, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credentials: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return Credentials{}, ErrMissingCredentials
		}
		obj, ok := v[0].(map[string]any)
		if !ok {
			return Credentials{}, fmt.Errorf("invalid credentials format")
		}
		return credentialsFrom(obj), nil
	case map[string]any:
		return credentialsFrom(v), nil
	default:
		return Credentials{}, fmt.Errorf("invalid credentials format")
	}
}

func credentialsFrom(obj map[string]any) Credentials {
	username, _ := obj["username"].(string)
	password, _ := obj["password"].(string)
	return Credentials{Username: username, Password: password}
}
