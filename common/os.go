package common

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/opendogma/dogma/common/console"
)

// GetenvOrDefault returns os.Getenv(key), or defaultValue if unset/blank.
func GetenvOrDefault(key string, defaultValue string) string {
	str := os.Getenv(key)
	if strings.TrimSpace(str) == "" {
		return defaultValue
	}

	return str
}

// GetenvBoolOrDefault returns os.Getenv(key) parsed as bool, or defaultValue if unset/invalid.
func GetenvBoolOrDefault(key string, defaultValue bool) bool {
	val, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}

	return val
}

// GetenvIntOrDefault returns os.Getenv(key) parsed as int64, or defaultValue if unset/invalid.
func GetenvIntOrDefault(key string, defaultValue int64) int64 {
	val, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return defaultValue
	}

	return val
}

// LocalEnvConfig reports whether a .env file was loaded for local development.
type LocalEnvConfig struct {
	Initialized bool
}

var (
	localEnvConfig     *LocalEnvConfig
	localEnvConfigOnce sync.Once
)

// InitLocalEnvConfig loads a .env file once per process when ENV_NAME=local.
func InitLocalEnvConfig() *LocalEnvConfig {
	version := GetenvOrDefault("VERSION", "NO-VERSION")
	fmt.Println(console.Title("dogmad " + version))

	envName := GetenvOrDefault("ENV_NAME", "local")
	fmt.Printf("environment: %s\n", envName)

	if envName == "local" {
		localEnvConfigOnce.Do(func() {
			if err := godotenv.Load(); err != nil {
				fmt.Println("skipping .env file:", err)
				localEnvConfig = &LocalEnvConfig{Initialized: false}
			} else {
				fmt.Println("env vars loaded from .env for pid", os.Getpid())
				localEnvConfig = &LocalEnvConfig{Initialized: true}
			}
		})
	}

	fmt.Println(console.Line(console.DefaultLineSize))

	return localEnvConfig
}

// SetConfigFromEnvVars populates s (a pointer to struct) from its `env:"NAME"`
// tags, falling back to an `envDefault:"..."` tag when the variable is unset.
// Supported field kinds: string, bool, int/int8/int16/int32/int64.
func SetConfigFromEnvVars(s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr {
		return errors.New("s must be a pointer")
	}

	e := v.Type().Elem()

	for i := 0; i < e.NumField(); i++ {
		f := e.Field(i)

		tag, ok := f.Tag.Lookup("env")
		if !ok {
			continue
		}

		name := strings.Split(tag, ",")[0]
		def := f.Tag.Get("envDefault")

		fv := v.Elem().FieldByName(f.Name)
		if !fv.CanSet() {
			continue
		}

		switch fv.Kind() {
		case reflect.Bool:
			defBool, _ := strconv.ParseBool(def)
			fv.SetBool(GetenvBoolOrDefault(name, defBool))
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			defInt, _ := strconv.ParseInt(def, 10, 64)
			fv.SetInt(GetenvIntOrDefault(name, defInt))
		default:
			fv.SetString(GetenvOrDefault(name, def))
		}
	}

	return nil
}

// EnsureConfigFromEnvVars calls SetConfigFromEnvVars and panics on error.
func EnsureConfigFromEnvVars(s any) any {
	if err := SetConfigFromEnvVars(s); err != nil {
		panic(err)
	}

	return s
}
