package common

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/weaveworks/promrus"

	commonconfig "github.com/G-Research/bitingest/internal/common/config"
)

const baseConfigFileName = "config"

// EnvPrefix is prepended to every configuration key when read from the environment,
// e.g. BITINGEST_MAXPARALLELOPERATIONS.
const EnvPrefix = "BITINGEST"

// BindCommandlineArguments makes every parsed pflag available through viper.
func BindCommandlineArguments() {
	err := viper.BindPFlags(pflag.CommandLine)
	if err != nil {
		log.Error(err)
		os.Exit(-1)
	}
}

// LoadConfig reads config.yaml from defaultPath and then merges each of overrideConfigs on top of it,
// in order. Environment variables take precedence over both.
func LoadConfig(config interface{}, defaultPath string, overrideConfigs []string) *viper.Viper {
	v, err := ReadConfig(config, defaultPath, overrideConfigs)
	if err != nil {
		log.Error(err)
		os.Exit(-1)
	}
	return v
}

// ReadConfig does the work of LoadConfig but returns the error instead of exiting.
func ReadConfig(config interface{}, defaultPath string, overrideConfigs []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(baseConfigFileName)
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading base config path=%s: %v", defaultPath, err)
	}
	log.Infof("Read base config from %s", v.ConfigFileUsed())

	for _, overrideConfig := range overrideConfigs {
		if strings.TrimSpace(overrideConfig) == "" {
			continue
		}
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config from %s: %v", overrideConfig, err)
		}
		log.Infof("Read config from %s", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.Unmarshal(config, commonconfig.CustomHooks...); err != nil {
		return nil, err
	}
	return v, nil
}

// ConfigureLogging sets up logrus for an application: full timestamps on stdout, plus a hook counting
// log lines per level in Prometheus.
func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
	log.AddHook(promrus.MustNewPrometheusHook())
}

// SetLogLevel parses level and applies it to the standard logger. An empty level leaves the current one.
func SetLogLevel(level string) error {
	if level == "" {
		return nil
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(parsed)
	return nil
}

// ServeMetrics exposes the default Prometheus registry on /metrics and returns a func that stops the server.
func ServeMetrics(port uint16) (shutdown func()) {
	return ServeMetricsFor(port, promhttp.Handler())
}

func ServeMetricsFor(port uint16, handler http.Handler) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		log.Printf("Starting metrics server on port %d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server failed: %v", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Print("Stopping metrics server")
		if err := srv.Shutdown(ctx); err != nil {
			log.Warnf("metrics server shutdown: %v", err)
		}
	}
}
