package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/biterate/internal/flagx"
)

var serverFlags = []string{
	"-a", "-m", "-i", "-d", "-l", "-o", "-f", "-z",
	"-u", "-p", "-b", "-g", "-e",
	"-s", "-x", "-k", "-t", "-w", "-v", "-r",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-m string   gRPC health bind address
//	-i string   metadata backend: postgres | sqlite
//	-d string   PostgreSQL DSN
//	-l string   SQLite database path
//	-o string   blob backend: s3 | local
//	-f string   local blob directory
//	-z string   local blob compression: none | zstd
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-s string   JWT HMAC secret key guarding upload and delete
//	-x int      max upload size, bytes
//	-k int      metadata cache size, entries
//	-t int      blob retry budget, seconds
//	-w string   upload staging directory
//	-v string   log level
//	-r string   comma separated CORS origins
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with the -c/-config flag.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port to run server")
	fs.StringVar(&config.GRPCHealthAddr, "m", config.GRPCHealthAddr, "gRPC health address and port")
	fs.StringVar(&config.MetadataBackend, "i", config.MetadataBackend, "metadata backend (postgres|sqlite)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SQLitePath, "l", config.SQLitePath, "sqlite database path")
	fs.StringVar(&config.BlobBackend, "o", config.BlobBackend, "blob backend (s3|local)")
	fs.StringVar(&config.LocalBlobDir, "f", config.LocalBlobDir, "local blob directory")
	fs.StringVar(&config.LocalCompression, "z", config.LocalCompression, "local blob compression (none|zstd)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.Int64Var(&config.MaxUploadBytes, "x", config.MaxUploadBytes, "max upload size (in bytes)")
	fs.IntVar(&config.MetadataCacheSize, "k", config.MetadataCacheSize, "metadata cache size (entries)")
	retryMaxElapsed := fs.Int("t", int(config.RetryMaxElapsed.Seconds()), "blob retry budget (in seconds)")
	fs.StringVar(&config.StagingDir, "w", config.StagingDir, "upload staging directory")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")
	origins := fs.String("r", strings.Join(config.AllowedOrigins, ","), "CORS origins, comma separated")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.RetryMaxElapsed = time.Duration(*retryMaxElapsed) * time.Second
	config.AllowedOrigins = splitList(*origins)
}
