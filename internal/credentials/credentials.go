// Package credentials resolves the access/secret key pair used to sign
// object-store requests.
package credentials

import (
	"fmt"
	"os"
	"strings"
)

// Credentials holds an access key pair and optional session token.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewCredentials creates a new credentials instance
func NewCredentials() *Credentials {
	return &Credentials{}
}

// LoadFromPasswdFile loads credentials from a passwd file. Two line formats
// are accepted, as in s3fs: ACCESS_KEY:SECRET_KEY, and
// BUCKET:ACCESS_KEY:SECRET_KEY. With the bucket form, only the line for
// bucket is used; pass an empty bucket to take the first line.
func (c *Credentials) LoadFromPasswdFile(path string, bucket ...string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read passwd file: %w", err)
	}

	want := ""
	if len(bucket) > 0 {
		want = bucket[0]
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ":")
		switch len(parts) {
		case 2:
			c.AccessKeyID = strings.TrimSpace(parts[0])
			c.SecretAccessKey = strings.TrimSpace(parts[1])
			return nil
		case 3:
			if want != "" && strings.TrimSpace(parts[0]) != want {
				continue
			}
			c.AccessKeyID = strings.TrimSpace(parts[1])
			c.SecretAccessKey = strings.TrimSpace(parts[2])
			return nil
		default:
			return fmt.Errorf("invalid passwd file format, expected ACCESS_KEY:SECRET_KEY")
		}
	}

	return fmt.Errorf("no credentials found in passwd file %s", path)
}

// LoadFromEnvironment loads credentials from environment variables
func (c *Credentials) LoadFromEnvironment() error {
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	sessionToken := os.Getenv("AWS_SESSION_TOKEN")

	if accessKey == "" || secretKey == "" {
		return fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}

	c.AccessKeyID = accessKey
	c.SecretAccessKey = secretKey
	c.SessionToken = sessionToken

	return nil
}

// Resolve loads credentials from passwdFile when it is set, otherwise from
// the environment.
func Resolve(passwdFile, bucket string) (*Credentials, error) {
	creds := NewCredentials()
	if passwdFile != "" {
		if err := creds.LoadFromPasswdFile(passwdFile, bucket); err != nil {
			return nil, err
		}
		return creds, nil
	}
	if err := creds.LoadFromEnvironment(); err != nil {
		return nil, err
	}
	return creds, nil
}

// IsValid checks if credentials are valid (both access key and secret are set)
func (c *Credentials) IsValid() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}
