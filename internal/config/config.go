package config

import (
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	JWTSecret   string
	JWTUser     string
	JWTPassword string

	ProviderPriority []string
	ProviderTimeout  time.Duration
	CacheTTL         time.Duration
	LogLevel         string

	TLSCertFile string
	TLSKeyFile  string

	TBOHost      string
	TBOClientID  string
	TBOUsername  string
	TBOPassword  string
	TBOEndUserIP string

	TripjackHost   string
	TripjackAPIKey string

	AmadeusHost         string
	AmadeusClientID     string
	AmadeusClientSecret string

	SkyLinkHost   string
	SkyLinkAPIKey string
}

func Load() *Config {
	v := viper.New()

	v.SetDefault("auth_user", "demo")
	v.SetDefault("auth_pass", "demo123")
	v.SetDefault("provider_priority", []string{"tbo", "tripjack", "amadeus", "skylink"})
	v.SetDefault("provider_timeout", "30s")
	v.SetDefault("cache_ttl", "30s")
	v.SetDefault("log_level", "info")

	v.SetDefault("tbo_host", "https://api.tektravels.com")
	v.SetDefault("tbo_enduser_ip", "127.0.0.1")
	v.SetDefault("tripjack_host", "https://apitest.tripjack.com")
	v.SetDefault("amadeus_host", "https://test.api.amadeus.com")
	v.SetDefault("skylink_host", "https://api.skylink-agg.com")

	if path := os.Getenv("FLIGHTS_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/flights")
	}

	if err := v.ReadInConfig(); err != nil {
		log.Printf("no config file found, using defaults + env vars: %v", err)
	}

	v.AutomaticEnv()

	pt, err := time.ParseDuration(v.GetString("provider_timeout"))
	if err != nil {
		log.Fatalf("bad provider_timeout: %v", err)
	}
	ct, err := time.ParseDuration(v.GetString("cache_ttl"))
	if err != nil {
		log.Fatalf("bad cache_ttl: %v", err)
	}

	return &Config{
		JWTSecret:   v.GetString("jwt_secret"),
		JWTUser:     v.GetString("auth_user"),
		JWTPassword: v.GetString("auth_pass"),

		ProviderPriority: v.GetStringSlice("provider_priority"),
		ProviderTimeout:  pt,
		CacheTTL:         ct,
		LogLevel:         v.GetString("log_level"),

		TLSCertFile: os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:  os.Getenv("TLS_KEY_FILE"),

		TBOHost:      v.GetString("tbo_host"),
		TBOClientID:  v.GetString("tbo_clientid"),
		TBOUsername:  v.GetString("tbo_username"),
		TBOPassword:  v.GetString("tbo_password"),
		TBOEndUserIP: v.GetString("tbo_enduser_ip"),

		TripjackHost:   v.GetString("tripjack_host"),
		TripjackAPIKey: v.GetString("tripjack_apikey"),

		AmadeusHost:         v.GetString("amadeus_host"),
		AmadeusClientID:     v.GetString("amadeus_clientid"),
		AmadeusClientSecret: v.GetString("amadeus_clientsecret"),

		SkyLinkHost:   v.GetString("skylink_host"),
		SkyLinkAPIKey: v.GetString("skylink_apikey"),
	}
}
