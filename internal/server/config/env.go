package config

import (
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. BITERATE_HTTP_ADDR.
const EnvPrefix = "biterate"

// parseEnv overlays values from BITERATE_* environment variables. Keys
// mirror the JSON field names. Unset variables leave the field unchanged.
func parseEnv(config *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	stringFields := map[string]*string{
		"http_addr":         &config.HTTPAddr,
		"grpc_health_addr":  &config.GRPCHealthAddr,
		"metadata_backend":  &config.MetadataBackend,
		"database_dsn":      &config.DatabaseDSN,
		"sqlite_path":       &config.SQLitePath,
		"blob_backend":      &config.BlobBackend,
		"local_blob_dir":    &config.LocalBlobDir,
		"local_compression": &config.LocalCompression,
		"s3_root_user":      &config.S3RootUser,
		"s3_root_password":  &config.S3RootPassword,
		"s3_bucket":         &config.S3Bucket,
		"s3_region":         &config.S3Region,
		"s3_base_endpoint":  &config.S3BaseEndpoint,
		"secret_key":        &config.SecretKey,
		"staging_dir":       &config.StagingDir,
		"log_level":         &config.LogLevel,
	}
	for key, dst := range stringFields {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	if v.IsSet("max_upload_bytes") {
		config.MaxUploadBytes = v.GetInt64("max_upload_bytes")
	}
	if v.IsSet("metadata_cache_size") {
		config.MetadataCacheSize = v.GetInt("metadata_cache_size")
	}
	if v.IsSet("retry_max_elapsed") {
		config.RetryMaxElapsed = v.GetDuration("retry_max_elapsed")
	}
	if v.IsSet("allowed_origins") {
		config.AllowedOrigins = splitList(v.GetString("allowed_origins"))
	}
}
