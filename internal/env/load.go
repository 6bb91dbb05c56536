package env

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv reads a .env file from the working directory when one exists.
// Missing files are not an error: in containers the variables come from the
// process environment.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set directly.")
	}
}

func MustGetEnv(key string) string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		log.Fatalf("Environment variable %s not set", key)
	}
	return val
}

// GetEnv returns the value of key, or def when the variable is unset or blank.
func GetEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return val
	}
	return def
}

func GetEnvInt(key string, def int) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		log.Printf("Ignoring %s=%q: not an integer, using %d", key, val, def)
		return def
	}
	return n
}

func GetEnvBool(key string, def bool) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(val))
	if err != nil {
		log.Printf("Ignoring %s=%q: not a boolean, using %t", key, val, def)
		return def
	}
	return b
}

func GetEnvDuration(key string, def time.Duration) time.Duration {
	val, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(val))
	if err != nil {
		log.Printf("Ignoring %s=%q: not a duration, using %s", key, val, def)
		return def
	}
	return d
}

// GetEnvList splits a comma separated variable, dropping empty entries.
func GetEnvList(key string, def []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
