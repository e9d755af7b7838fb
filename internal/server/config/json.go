package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/accounthub/internal/flagx"
	"github.com/dmitrijs2005/accounthub/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted. Only keys
// present in the file override the current Config.
type JsonConfig struct {
	Env                *string         `json:"env"`
	HTTPAddr           *string         `json:"http_addr"`
	DatabaseDSN        *string         `json:"database_dsn"`
	AccessTokenSecret  *string         `json:"access_token_secret"`
	RefreshTokenSecret *string         `json:"refresh_token_secret"`
	AccessTokenTTL     *timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL    *timex.Duration `json:"refresh_token_ttl"`
	CORSOrigin         *string         `json:"cors_origin"`
	PasswordHashCost   *int            `json:"password_hash_cost"`
	UploadTempDir      *string         `json:"upload_temp_dir"`
	S3AccessKey        *string         `json:"s3_access_key"`
	S3SecretKey        *string         `json:"s3_secret_key"`
	S3Bucket           *string         `json:"s3_bucket"`
	S3Region           *string         `json:"s3_region"`
	S3BaseEndpoint     *string         `json:"s3_base_endpoint"`
	S3PublicBaseURL    *string         `json:"s3_public_base_url"`
	ShutdownTimeout    *timex.Duration `json:"shutdown_timeout"`
}

// parseJson overlays values from the file named by -c/-config. Without the
// flag nothing is loaded. An unreadable file or invalid JSON panics: the
// server must not start on a half-applied configuration.
func parseJson(config *Config) {
	path := flagx.ConfigFileFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.Env, c.Env)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	if c.AccessTokenTTL != nil {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL != nil {
		config.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	setString(&config.CORSOrigin, c.CORSOrigin)
	if c.PasswordHashCost != nil {
		config.PasswordHashCost = *c.PasswordHashCost
	}
	setString(&config.UploadTempDir, c.UploadTempDir)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicBaseURL, c.S3PublicBaseURL)
	if c.ShutdownTimeout != nil {
		config.ShutdownTimeout = c.ShutdownTimeout.Duration
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
