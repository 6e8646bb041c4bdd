package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/biterate/internal/flagx"
	"github.com/dmitrijs2005/biterate/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. Fields left out of the file keep their current value.
type JsonConfig struct {
	HTTPAddr          string         `json:"http_addr"`
	GRPCHealthAddr    string         `json:"grpc_health_addr"`
	MetadataBackend   string         `json:"metadata_backend"`
	DatabaseDSN       string         `json:"database_dsn"`
	SQLitePath        string         `json:"sqlite_path"`
	BlobBackend       string         `json:"blob_backend"`
	LocalBlobDir      string         `json:"local_blob_dir"`
	LocalCompression  string         `json:"local_compression"`
	S3RootUser        string         `json:"s3_root_user"`
	S3RootPassword    string         `json:"s3_root_password"`
	S3Bucket          string         `json:"s3_bucket"`
	S3Region          string         `json:"s3_region"`
	S3BaseEndpoint    string         `json:"s3_base_endpoint"`
	SecretKey         string         `json:"secret_key"`
	MaxUploadBytes    int64          `json:"max_upload_bytes"`
	MetadataCacheSize int            `json:"metadata_cache_size"`
	RetryMaxElapsed   timex.Duration `json:"retry_max_elapsed"`
	StagingDir        string         `json:"staging_dir"`
	LogLevel          string         `json:"log_level"`
	AllowedOrigins    []string       `json:"allowed_origins"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Nothing is loaded when neither flag is given. An unreadable
// file or invalid JSON panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCHealthAddr, c.GRPCHealthAddr)
	setString(&config.MetadataBackend, c.MetadataBackend)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SQLitePath, c.SQLitePath)
	setString(&config.BlobBackend, c.BlobBackend)
	setString(&config.LocalBlobDir, c.LocalBlobDir)
	setString(&config.LocalCompression, c.LocalCompression)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.StagingDir, c.StagingDir)
	setString(&config.LogLevel, c.LogLevel)

	if c.MaxUploadBytes > 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	if c.MetadataCacheSize > 0 {
		config.MetadataCacheSize = c.MetadataCacheSize
	}
	if c.RetryMaxElapsed.Duration > 0 {
		config.RetryMaxElapsed = c.RetryMaxElapsed.Duration
	}
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
